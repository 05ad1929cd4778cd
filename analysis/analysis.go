// Package analysis implements the schematic and board analysis tool
// server. Reports are synthesized from fixed reference tables keyed by
// the requested file path, so identical requests always produce
// identical payloads.
package analysis

import (
	"context"
	"sort"
	"strconv"
	"time"
)

// Issue is one finding from a schematic check.
type Issue struct {
	Type       string `json:"type"`
	Category   string `json:"category"`
	Message    string `json:"message"`
	Component  string `json:"component,omitempty"`
	Pin        string `json:"pin,omitempty"`
	Net        string `json:"net,omitempty"`
	Suggestion string `json:"suggestion"`
}

// PowerRail is one supply rail in the power analysis.
type PowerRail struct {
	Rail    string `json:"rail"`
	Voltage string `json:"voltage"`
	Current string `json:"current"`
}

// SchematicReport is the analyze_schematic payload.
type SchematicReport struct {
	FilePath string `json:"file_path"`
	Summary  struct {
		TotalComponents int `json:"total_components"`
		TotalNets       int `json:"total_nets"`
		Warnings        int `json:"warnings"`
		Errors          int `json:"errors"`
	} `json:"analysis_summary"`
	Issues        []Issue `json:"issues"`
	PowerAnalysis struct {
		TotalCurrentDraw string      `json:"total_current_draw"`
		PowerRails       []PowerRail `json:"power_rails"`
	} `json:"power_analysis"`
	ComponentSummary map[string]int `json:"component_summary"`
}

// DRCIssue is one design-rule finding on the board.
type DRCIssue struct {
	Type     string `json:"type"`
	Rule     string `json:"rule"`
	Location string `json:"location"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// BoardReport is the analyze_pcb payload.
type BoardReport struct {
	FilePath  string `json:"file_path"`
	BoardInfo struct {
		Size       string `json:"size"`
		Layers     int    `json:"layers"`
		Thickness  string `json:"thickness"`
		Components int    `json:"components"`
	} `json:"board_info"`
	DRCResults struct {
		Violations int        `json:"violations"`
		Warnings   int        `json:"warnings"`
		Issues     []DRCIssue `json:"issues"`
	} `json:"drc_results"`
	LayerUsage struct {
		SignalLayers []string `json:"signal_layers"`
		PlaneLayers  []string `json:"plane_layers"`
		Utilization  string   `json:"utilization"`
	} `json:"layer_usage"`
	ManufacturingNotes []string `json:"manufacturing_notes"`
}

// Component is one schematic symbol in the component list.
type Component struct {
	Reference    string `json:"reference"`
	Value        string `json:"value,omitempty"`
	Footprint    string `json:"footprint,omitempty"`
	Description  string `json:"description"`
	Manufacturer string `json:"manufacturer"`
	PartNumber   string `json:"part_number"`
}

// ComponentList is the get_component_list payload.
type ComponentList struct {
	SchematicPath  string      `json:"schematic_path"`
	ComponentCount int         `json:"component_count"`
	Components     []Component `json:"components"`
}

// BOMItem is one grouped line of the bill of materials.
type BOMItem struct {
	Item         int      `json:"item"`
	Quantity     int      `json:"quantity"`
	References   []string `json:"references"`
	Value        string   `json:"value"`
	Footprint    string   `json:"footprint"`
	Manufacturer string   `json:"manufacturer"`
	PartNumber   string   `json:"part_number"`
	UnitPrice    *float64 `json:"unit_price"`
	TotalPrice   *float64 `json:"total_price"`
}

// BOM is the generate_bom payload.
type BOM struct {
	SchematicPath   string    `json:"schematic_path"`
	GeneratedDate   string    `json:"generated_date"`
	TotalItems      int       `json:"total_items"`
	TotalComponents int       `json:"total_components"`
	TotalCost       *float64  `json:"total_cost"`
	Items           []BOMItem `json:"bom_items"`
}

// Suggestion is one design improvement recommendation.
type Suggestion struct {
	Component        string `json:"component,omitempty"`
	Area             string `json:"area,omitempty"`
	Suggestion       string `json:"suggestion"`
	PotentialSavings string `json:"potential_savings,omitempty"`
	Impact           string `json:"impact"`
}

// Improvements is the suggest_improvements payload.
type Improvements struct {
	ProjectPath string                  `json:"project_path"`
	FocusAreas  []string                `json:"focus_areas"`
	Suggestions map[string][]Suggestion `json:"suggestions"`
}

// FootprintIssue is one component with a footprint problem.
type FootprintIssue struct {
	Component    string   `json:"component"`
	Issue        string   `json:"issue"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// FootprintReport is the validate_footprints payload.
type FootprintReport struct {
	TotalComponents   int              `json:"total_components"`
	ValidFootprints   int              `json:"valid_footprints"`
	MissingFootprints int              `json:"missing_footprints"`
	Issues            []FootprintIssue `json:"issues"`
}

// Analyzer produces the reference reports. The zero value is ready to
// use; Now is stubbed in tests for a stable BOM date.
type Analyzer struct {
	Now func() time.Time
}

// NewAnalyzer returns an analyzer stamping BOMs with the wall clock.
func NewAnalyzer() *Analyzer {
	return &Analyzer{Now: time.Now}
}

// AnalyzeSchematic runs ERC-style checks. checkTypes defaults to
// erc+connectivity; unknown check names are ignored.
func (a *Analyzer) AnalyzeSchematic(ctx context.Context, schematicPath string, checkTypes []string) (SchematicReport, error) {
	if err := ctx.Err(); err != nil {
		return SchematicReport{}, err
	}
	if len(checkTypes) == 0 {
		checkTypes = []string{"erc", "connectivity"}
	}

	report := SchematicReport{FilePath: schematicPath}
	report.Summary.TotalComponents = 45
	report.Summary.TotalNets = 67
	report.Summary.Errors = 0

	checks := map[string]bool{}
	for _, c := range checkTypes {
		checks[c] = true
	}
	if checks["erc"] {
		report.Issues = append(report.Issues, Issue{
			Type:       "warning",
			Category:   "erc",
			Message:    "Power input not connected on U1 pin 8",
			Component:  "U1",
			Pin:        "8",
			Suggestion: "Connect VCC to power rail or add decoupling capacitor",
		})
	}
	if checks["connectivity"] {
		report.Issues = append(report.Issues, Issue{
			Type:       "warning",
			Category:   "connectivity",
			Message:    "Net 'LED_CTL' only has one connection",
			Net:        "LED_CTL",
			Suggestion: "Verify if this signal should connect to additional components",
		})
	}
	report.Summary.Warnings = len(report.Issues)

	report.PowerAnalysis.TotalCurrentDraw = "125mA"
	report.PowerAnalysis.PowerRails = []PowerRail{
		{Rail: "VCC", Voltage: "3.3V", Current: "85mA"},
		{Rail: "VDD", Voltage: "5V", Current: "40mA"},
	}
	report.ComponentSummary = map[string]int{
		"resistors":  15,
		"capacitors": 12,
		"ics":        3,
		"connectors": 2,
		"other":      13,
	}
	return report, nil
}

// AnalyzePCB runs DRC-style checks on a board file.
func (a *Analyzer) AnalyzePCB(ctx context.Context, pcbPath string, checkTypes []string) (BoardReport, error) {
	if err := ctx.Err(); err != nil {
		return BoardReport{}, err
	}

	report := BoardReport{FilePath: pcbPath}
	report.BoardInfo.Size = "50mm x 80mm"
	report.BoardInfo.Layers = 4
	report.BoardInfo.Thickness = "1.6mm"
	report.BoardInfo.Components = 45

	report.DRCResults.Violations = 1
	report.DRCResults.Warnings = 3
	report.DRCResults.Issues = []DRCIssue{
		{
			Type:     "violation",
			Rule:     "minimum_trace_width",
			Location: "(25.4, 12.7)",
			Message:  "Trace width 0.1mm below minimum 0.15mm",
			Severity: "error",
		},
		{
			Type:     "warning",
			Rule:     "via_size",
			Location: "(45.2, 33.1)",
			Message:  "Via size may be too small for reliable manufacturing",
			Severity: "warning",
		},
	}

	report.LayerUsage.SignalLayers = []string{"F.Cu", "In1.Cu", "In2.Cu", "B.Cu"}
	report.LayerUsage.PlaneLayers = []string{"In1.Cu (GND)", "In2.Cu (VCC)"}
	report.LayerUsage.Utilization = "75%"

	report.ManufacturingNotes = []string{
		"Consider increasing trace width for power rails",
		"Add more thermal vias under high-power components",
		"Verify minimum drill sizes with manufacturer",
	}
	return report, nil
}

var referenceComponents = []Component{
	{
		Reference:    "R1",
		Value:        "10kΩ",
		Footprint:    "Resistor_SMD:R_0805_2012Metric",
		Description:  "Resistor",
		Manufacturer: "Yageo",
		PartNumber:   "RC0805FR-0710KL",
	},
	{
		Reference:    "C1",
		Value:        "100nF",
		Footprint:    "Capacitor_SMD:C_0805_2012Metric",
		Description:  "Capacitor",
		Manufacturer: "Samsung",
		PartNumber:   "CL21B104KBCNNNC",
	},
	{
		Reference:    "U1",
		Value:        "ATmega328P-AU",
		Footprint:    "Package_QFP:TQFP-32_7x7mm_P0.8mm",
		Description:  "Microcontroller",
		Manufacturer: "Microchip",
		PartNumber:   "ATMEGA328P-AU",
	},
}

// ComponentList extracts the symbols from a schematic. Value and
// footprint fields are blanked when the caller opts out of them.
func (a *Analyzer) ComponentList(ctx context.Context, schematicPath string, includeValues, includeFootprints bool) (ComponentList, error) {
	if err := ctx.Err(); err != nil {
		return ComponentList{}, err
	}

	components := make([]Component, len(referenceComponents))
	copy(components, referenceComponents)
	for i := range components {
		if !includeValues {
			components[i].Value = ""
		}
		if !includeFootprints {
			components[i].Footprint = ""
		}
	}
	return ComponentList{
		SchematicPath:  schematicPath,
		ComponentCount: len(components),
		Components:     components,
	}, nil
}

func refs(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + strconv.Itoa(i+1)
	}
	return out
}

// GenerateBOM groups the reference components into BOM lines. Pricing
// columns are null unless includePricing is set.
func (a *Analyzer) GenerateBOM(ctx context.Context, schematicPath string, includePricing bool, groupBy string) (BOM, error) {
	if err := ctx.Err(); err != nil {
		return BOM{}, err
	}
	if groupBy == "" {
		groupBy = "value"
	}

	items := []BOMItem{
		{
			Item:         1,
			Quantity:     15,
			References:   refs("R", 15),
			Value:        "10kΩ",
			Footprint:    "Resistor_SMD:R_0805_2012Metric",
			Manufacturer: "Yageo",
			PartNumber:   "RC0805FR-0710KL",
		},
		{
			Item:         2,
			Quantity:     12,
			References:   refs("C", 12),
			Value:        "100nF",
			Footprint:    "Capacitor_SMD:C_0805_2012Metric",
			Manufacturer: "Samsung",
			PartNumber:   "CL21B104KBCNNNC",
		},
	}
	if groupBy == "footprint" || groupBy == "manufacturer" {
		key := func(item BOMItem) string { return item.Footprint }
		if groupBy == "manufacturer" {
			key = func(item BOMItem) string { return item.Manufacturer }
		}
		sort.SliceStable(items, func(i, j int) bool { return key(items[i]) < key(items[j]) })
		for i := range items {
			items[i].Item = i + 1
		}
	}

	bom := BOM{
		SchematicPath: schematicPath,
		GeneratedDate: a.now().Format("2006-01-02"),
		TotalItems:    len(items),
		Items:         items,
	}
	for _, item := range items {
		bom.TotalComponents += item.Quantity
	}
	if includePricing {
		unitPrices := map[string]float64{
			"RC0805FR-0710KL": 0.10,
			"CL21B104KBCNNNC": 0.05,
		}
		var total float64
		for i := range bom.Items {
			unit := unitPrices[bom.Items[i].PartNumber]
			line := unit * float64(bom.Items[i].Quantity)
			bom.Items[i].UnitPrice = &unit
			bom.Items[i].TotalPrice = &line
			total += line
		}
		bom.TotalCost = &total
	}
	return bom, nil
}

func (a *Analyzer) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// SuggestImprovements returns recommendations for the requested focus
// areas. With no focus areas, cost and performance are assumed.
func (a *Analyzer) SuggestImprovements(ctx context.Context, projectPath string, focusAreas []string) (Improvements, error) {
	if err := ctx.Err(); err != nil {
		return Improvements{}, err
	}
	if len(focusAreas) == 0 {
		focusAreas = []string{"cost", "performance"}
	}

	return Improvements{
		ProjectPath: projectPath,
		FocusAreas:  focusAreas,
		Suggestions: map[string][]Suggestion{
			"cost_optimization": {{
				Component:        "R1-R15",
				Suggestion:       "Consider using resistor arrays instead of individual resistors",
				PotentialSavings: "15%",
				Impact:           "Reduced component count and assembly cost",
			}},
			"performance_improvements": {{
				Area:       "Power supply decoupling",
				Suggestion: "Add more decoupling capacitors near high-speed ICs",
				Impact:     "Improved signal integrity and reduced noise",
			}},
			"reliability_enhancements": {{
				Component:  "U1",
				Suggestion: "Add ESD protection on exposed pins",
				Impact:     "Increased robustness against electrostatic discharge",
			}},
			"manufacturability": {{
				Suggestion: "Standardize on 0805 package size where possible",
				Impact:     "Simplified pick-and-place setup and reduced setup costs",
			}},
		},
	}, nil
}

// ValidateFootprints checks footprint assignments. Alternative
// suggestions are omitted when suggestAlternatives is false.
func (a *Analyzer) ValidateFootprints(ctx context.Context, schematicPath string, suggestAlternatives bool) (FootprintReport, error) {
	if err := ctx.Err(); err != nil {
		return FootprintReport{}, err
	}

	report := FootprintReport{
		TotalComponents:   45,
		ValidFootprints:   43,
		MissingFootprints: 2,
		Issues: []FootprintIssue{
			{Component: "J1", Issue: "No footprint assigned"},
			{Component: "D1", Issue: "Footprint library not found"},
		},
	}
	if suggestAlternatives {
		report.Issues[0].Alternatives = []string{
			"Connector_PinHeader_2.54mm:PinHeader_1x04_P2.54mm_Vertical",
			"Connector_JST:JST_XH_B4B-XH-A_1x04_P2.50mm_Vertical",
		}
		report.Issues[1].Alternatives = []string{
			"LED_SMD:LED_0805_2012Metric",
			"LED_THT:LED_D5.0mm",
		}
	}
	return report, nil
}
