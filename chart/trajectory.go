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
package chart

import (
	"errors"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"clinphen/phenotype"
)

var (
	creatinineColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	referenceColor  = color.RGBA{R: 127, G: 127, B: 127, A: 255}
	akiColor        = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Width and Height are the size of a rendered trajectory.
const (
	Width  = 8 * vg.Inch
	Height = 4 * vg.Inch
)

func unix(r *phenotype.AKIRecord) float64 {
	return float64(r.Time.Unix())
}

// CreatinineTrajectory plots the creatinine draws of an encounter during its stay, the reference creatinine they
// were compared against, and marks the draws that met the AKI definition.
func CreatinineTrajectory(result *phenotype.AKIResult) (*plot.Plot, error) {
	if len(result.Records) == 0 {
		return nil, errors.New("encounter " + result.Encounter.EID + " has no creatinine during its stay")
	}
	creatinine := make(plotter.XYs, 0, len(result.Records))
	reference := plotter.XYs{}
	aki := plotter.XYs{}
	for _, r := range result.Records {
		creatinine = append(creatinine, plotter.XY{X: unix(r), Y: r.Creatinine})
		if !math.IsNaN(r.Reference) {
			reference = append(reference, plotter.XY{X: unix(r), Y: r.Reference})
		}
		if r.AKI {
			aki = append(aki, plotter.XY{X: unix(r), Y: r.Creatinine})
		}
	}
	p := plot.New()
	p.Title.Text = "Encounter " + result.Encounter.EID
	p.X.Label.Text = "time"
	p.Y.Label.Text = "creatinine (mg/dL)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Add(plotter.NewGrid())

	line, points, err := plotter.NewLinePoints(creatinine)
	if err != nil {
		return nil, err
	}
	line.Color = creatinineColor
	points.Color = creatinineColor
	points.Shape = draw.CircleGlyph{}
	p.Add(line, points)
	p.Legend.Add("creatinine", line, points)

	if len(reference) > 0 {
		refLine, err := plotter.NewLine(reference)
		if err != nil {
			return nil, err
		}
		refLine.Color = referenceColor
		refLine.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		refLine.StepStyle = plotter.PostStep
		p.Add(refLine)
		p.Legend.Add("reference", refLine)
	}
	if len(aki) > 0 {
		marks, err := plotter.NewScatter(aki)
		if err != nil {
			return nil, err
		}
		marks.Color = akiColor
		marks.Shape = draw.CrossGlyph{}
		marks.Radius = vg.Points(5)
		p.Add(marks)
		p.Legend.Add("AKI", marks)
	}
	p.Legend.Top = true
	return p, nil
}

// WriteCreatinineTrajectory renders the trajectory of an encounter in the given format: png, svg, pdf, ...
func WriteCreatinineTrajectory(w io.Writer, result *phenotype.AKIResult, format string) error {
	p, err := CreatinineTrajectory(result)
	if err != nil {
		return err
	}
	writer, err := p.WriterTo(Width, Height, format)
	if err != nil {
		return err
	}
	_, err = writer.WriteTo(w)
	return err
}

// SaveCreatinineTrajectory renders the trajectory of an encounter to a file, in the format given by its extension.
func SaveCreatinineTrajectory(path string, result *phenotype.AKIResult) error {
	p, err := CreatinineTrajectory(result)
	if err != nil {
		return err
	}
	return p.Save(Width, Height, path)
}
