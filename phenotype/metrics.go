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
package phenotype

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Collecting metrics for a cohort of phenotyped encounters

// Cohort holds aggregate statistics over the summaries of a phenotyped cohort.
type Cohort struct {
	Encounters          int
	WithCreatinine      int
	AKIEncounters       int
	Incidence           float64 //AKI encounters / encounters with creatinine
	MeanEpisodes        float64 //over AKI encounters
	StdDevEpisodes      float64
	MeanWorstStage      float64 //ordinal of the worst stage, Stage 1 = 1, over AKI encounters
	MeanLengthOfStay    float64 //days
	StdDevLengthOfStay  float64
	StageCounts         map[Stage]int //encounters per worst stage
	RRTEncounters       int
	RecurrentEncounters int
}

// stageOrdinal maps a graded stage onto 1..4, StageUndetermined onto 0.
func stageOrdinal(s Stage) float64 {
	if s < Stage1 {
		return 0
	}
	return float64(s - Stage1 + 1)
}

// CohortMetrics computes:
// * AKI incidence among encounters with creatinine,
// * mean and standard deviation of the number of episodes of AKI encounters,
// * mean worst stage of AKI encounters,
// * mean and standard deviation of the length of stay,
// * the number of encounters per worst stage, with RRT and with recurrent AKI.
func CohortMetrics(summaries []*Summary) *Cohort {
	c := &Cohort{Encounters: len(summaries), StageCounts: map[Stage]int{}}
	los := []float64{}
	episodes := []float64{}
	worst := []float64{}
	for _, s := range summaries {
		los = append(los, s.Discharge.Sub(s.Admit).Hours()/24)
		if !s.HasCreatinine {
			continue
		}
		c.WithCreatinine++
		if s.RRT.Overall {
			c.RRTEncounters++
		}
		if s.RecurrentAKI != nil && *s.RecurrentAKI {
			c.RecurrentEncounters++
		}
		if s.AKIOverall {
			c.AKIEncounters++
			c.StageCounts[s.WorstStage]++
			episodes = append(episodes, float64(len(s.Episodes)))
			worst = append(worst, stageOrdinal(s.WorstStage))
		}
	}
	if c.WithCreatinine > 0 {
		c.Incidence = float64(c.AKIEncounters) / float64(c.WithCreatinine)
	}
	if len(los) > 0 {
		c.MeanLengthOfStay, c.StdDevLengthOfStay = stat.MeanStdDev(los, nil)
	}
	if len(episodes) > 0 {
		c.MeanEpisodes, c.StdDevEpisodes = stat.MeanStdDev(episodes, nil)
		c.MeanWorstStage = floats.Sum(worst) / float64(len(worst))
	}
	return c
}

// PrintCohort prints the cohort statistics to standard output.
func PrintCohort(c *Cohort) {
	fmt.Println("Encounters: ", c.Encounters, " with creatinine: ", c.WithCreatinine)
	fmt.Printf("AKI encounters: %d (incidence %.3f)\n", c.AKIEncounters, c.Incidence)
	fmt.Printf("Episodes per AKI encounter: %.2f +- %.2f\n", c.MeanEpisodes, c.StdDevEpisodes)
	fmt.Printf("Mean worst stage: %.2f\n", c.MeanWorstStage)
	fmt.Printf("Length of stay (days): %.2f +- %.2f\n", c.MeanLengthOfStay, c.StdDevLengthOfStay)
	for _, s := range []Stage{StageUndetermined, Stage1, Stage2, Stage3, Stage3RRT} {
		fmt.Println("Worst stage ", s, ": ", c.StageCounts[s])
	}
	fmt.Println("RRT encounters: ", c.RRTEncounters, " recurrent AKI: ", c.RecurrentEncounters)
}
