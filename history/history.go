// clinphen: Clinical Phenotyping Engine
// Copyright (c) 2024 The clinphen Authors.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License along with this program. If not, see
// <https://www.gnu.org/licenses/>.
package history

import (
	"time"

	"github.com/exascience/pargo/parallel"

	"clinphen/phenotype"
	"clinphen/utils"
)

// Variable is a renal history variable.
type Variable int

const (
	AKI Variable = iota
	CKD
	Dialysis
	KidneyTransplant
	ESRD
	nofVariables
)

// Variables lists every history variable in output order.
var Variables = []Variable{AKI, CKD, Dialysis, KidneyTransplant, ESRD}

var variableNames = []string{"aki", "ckd", "dialysis", "kidneyTransplant", "esrd"}

func (v Variable) String() string {
	return variableNames[v]
}

// variableAliases maps the variable names used by code lists onto variables.
var variableAliases = map[string]Variable{
	"aki":               AKI,
	"ckd":               CKD,
	"dialysis":          Dialysis,
	"renal_transplant":  KidneyTransplant,
	"kidney_transplant": KidneyTransplant,
	"kidneyTransplant":  KidneyTransplant,
	"esrd":              ESRD,
}

// strictlyBefore tells whether a variable only counts codes dated before the admission day.
func strictlyBefore(v Variable) bool {
	return v == AKI || v == KidneyTransplant
}

// Domain is the source domain of a history code.
type Domain int

const (
	ConditionDomain Domain = iota
	ProcedureDomain
	otherDomain
)

// domainOf maps a code domain tag onto a Domain. Observations count as conditions.
func domainOf(tag string) Domain {
	switch tag {
	case "Condition", "Observation":
		return ConditionDomain
	case "Procedure":
		return ProcedureDomain
	}
	return otherDomain
}

// CodeRef is the concept code and date of the code that supports a history flag.
type CodeRef struct {
	ConceptID string
	Date      time.Time
}

// VariableHistory is the resolved history of one variable.
type VariableHistory struct {
	Condition *CodeRef //latest qualifying condition code
	Procedure *CodeRef //latest qualifying procedure code
	AdminFlag bool
}

// AdminHistory is the admission time renal history of an encounter. Every variable is always present, with nil code
// references when no code qualifies.
type AdminHistory struct {
	EID, PID      string
	Admit         time.Time
	ConditionFlag bool //any condition or observation code on or before the admission day
	ProcedureFlag bool //any procedure code on or before the admission day
	FinalCodeFlag bool //any code on or before the admission day
	Variables     [nofVariables]VariableHistory
	Prior         *PriorCreatinine //nil until PriorCreatinineFlags ran
	Staging       *Staging         //nil until StageCKD ran
}

// Flag returns the admin flag of a variable.
func (h *AdminHistory) Flag(v Variable) bool {
	return h.Variables[v].AdminFlag
}

// Resolve computes the admission time history of an encounter from the codes of its patient. A code qualifies when
// it is dated on or before the admission day, or strictly before it for AKI and kidney transplant. Per variable and
// domain the latest qualifying code is kept. ESRD supersedes CKD: with an ESRD history the CKD flag is cleared
// together with its code references.
func Resolve(e *phenotype.Encounter, codes []*phenotype.Code) *AdminHistory {
	h := &AdminHistory{EID: e.EID, PID: e.PID, Admit: e.Admit}
	admitDate := utils.Date(e.Admit)
	for _, c := range codes {
		date := utils.Date(c.Date)
		if date.After(admitDate) {
			continue
		}
		domain := domainOf(c.Domain)
		h.FinalCodeFlag = true
		switch domain {
		case ConditionDomain:
			h.ConditionFlag = true
		case ProcedureDomain:
			h.ProcedureFlag = true
		}
		v, ok := variableAliases[c.Variable]
		if !ok || domain == otherDomain || (strictlyBefore(v) && !date.Before(admitDate)) {
			continue
		}
		slot := &h.Variables[v].Condition
		if domain == ProcedureDomain {
			slot = &h.Variables[v].Procedure
		}
		if *slot == nil || !date.Before((*slot).Date) {
			*slot = &CodeRef{ConceptID: c.ConceptID, Date: date}
		}
	}
	for v := range h.Variables {
		h.Variables[v].AdminFlag = h.Variables[v].Condition != nil || h.Variables[v].Procedure != nil
	}
	if h.Variables[ESRD].AdminFlag {
		h.Variables[CKD] = VariableHistory{}
	}
	return h
}

// ResolveAll resolves the history of every encounter in parallel. Codes are looked up by patient id. Results are in
// input order.
func ResolveAll(encounters []*phenotype.Encounter, codes map[string][]*phenotype.Code) []*AdminHistory {
	if len(encounters) == 0 {
		return []*AdminHistory{}
	}
	result := parallel.RangeReduce(0, len(encounters), 0, func(low, high int) interface{} {
		histories := make([]*AdminHistory, 0, high-low)
		for _, e := range encounters[low:high] {
			histories = append(histories, Resolve(e, codes[e.PID]))
		}
		return histories
	}, func(x, y interface{}) interface{} {
		return append(x.([]*AdminHistory), y.([]*AdminHistory)...)
	})
	return result.([]*AdminHistory)
}

// ApplyToEncounter copies the ESRD history onto an encounter, so that encounter filters can use it. When the
// encounter did not come with a CKD status from its input, the CKD staging of the history is copied too, so that
// the AKI engine starts from the staged reference creatinine.
func ApplyToEncounter(h *AdminHistory, e *phenotype.Encounter) {
	e.ESRD = h.Flag(ESRD)
	if h.Staging == nil || e.CKDStatus != "" {
		return
	}
	e.CKDStatus = h.Staging.CKD
	if e.FinalClass == "" {
		e.FinalClass = h.Staging.FinalClass
	}
	if !e.HasReference() && h.Staging.ReferenceCreatinine > 0 {
		e.ReferenceCreatinine = h.Staging.ReferenceCreatinine
	}
}
