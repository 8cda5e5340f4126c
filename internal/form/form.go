// Package form adds repeatable rows (drivers, commodities, units) to the
// letter templates. Field names are derived from the row's position in
// its list, so no counter outlives a request.
package form

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/pageflow/internal/dom"
	"golang.org/x/net/html"
)

// ErrNoRowContainer means the template has no list for the requested kind.
var ErrNoRowContainer = errors.New("row container not found")

// RowKind identifies a repeatable row.
type RowKind string

const (
	Driver    RowKind = "driver"
	Commodity RowKind = "commodity"
	Unit      RowKind = "unit"
)

type rowSpec struct {
	containerID string
	rowTag      string
	rowClass    string
	template    string // %[1]d is the 1-based row number
	fields      []string
}

var specs = map[RowKind]rowSpec{
	Driver: {
		containerID: "drivers-tbody",
		rowTag:      "tr",
		rowClass:    "driver-row",
		template: `<td><input type="text" class="form-control" name="driver_name_%[1]d"/></td>` +
			`<td><input type="date" class="form-control" name="driver_dob_%[1]d"/></td>` +
			`<td><input type="text" class="form-control" name="driver_license_%[1]d"/></td>` +
			`<td><input type="text" class="form-control" name="driver_state_%[1]d" maxlength="2" style="width: 60px;"/></td>`,
		fields: []string{"driver_name_%d", "driver_dob_%d", "driver_license_%d", "driver_state_%d"},
	},
	Commodity: {
		containerID: "commodities-container",
		rowTag:      "div",
		rowClass:    "commodity-item mb-2",
		template:    `<textarea class="form-control" name="commodity_%[1]d" rows="2" placeholder="Ej: PLASTIC PRODUCTS 30%%"></textarea>`,
		fields:      []string{"commodity_%d"},
	},
	Unit: {
		containerID: "units-container",
		rowTag:      "div",
		rowClass:    "unit-item mb-2",
		template:    `<textarea class="form-control" name="unit_%[1]d" rows="2" placeholder="Ej: 2018 /FREIGHTLINER /SEMI /VIN: 3AKJHHDR8JSKG4321 /NO PHYSICAL DAMAGE"></textarea>`,
		fields:      []string{"unit_%d"},
	},
}

// ParseKind validates a row kind from user input.
func ParseKind(s string) (RowKind, error) {
	k := RowKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := specs[k]; !ok {
		return "", fmt.Errorf("unknown row kind %q", s)
	}
	return k, nil
}

// Rows returns the existing rows of kind in document order.
func Rows(root *html.Node, kind RowKind) ([]*html.Node, error) {
	spec, ok := specs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown row kind %q", kind)
	}
	container := dom.FindByID(root, spec.containerID)
	if container == nil {
		return nil, fmt.Errorf("%s: %w", kind, ErrNoRowContainer)
	}
	return dom.ChildrenByClass(container, primaryClass(spec.rowClass)), nil
}

// AddRow appends a new row of kind and returns the names of its fields.
// The row number is one past the rows already present.
func AddRow(root *html.Node, kind RowKind) ([]string, error) {
	spec, ok := specs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown row kind %q", kind)
	}
	container := dom.FindByID(root, spec.containerID)
	if container == nil {
		return nil, fmt.Errorf("%s: %w", kind, ErrNoRowContainer)
	}

	n := len(dom.ChildrenByClass(container, primaryClass(spec.rowClass))) + 1

	row := dom.Element(spec.rowTag, spec.rowClass)
	cells, err := dom.ParseFragment(fmt.Sprintf(spec.template, n), spec.rowTag)
	if err != nil {
		return nil, fmt.Errorf("build %s row: %w", kind, err)
	}
	for _, c := range cells {
		row.AppendChild(c)
	}
	container.AppendChild(row)

	names := make([]string, len(spec.fields))
	for i, f := range spec.fields {
		names[i] = fmt.Sprintf(f, n)
	}
	return names, nil
}

func primaryClass(classes string) string {
	if f := strings.Fields(classes); len(f) > 0 {
		return f[0]
	}
	return ""
}
