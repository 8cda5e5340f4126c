package form

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/pageflow/internal/dom"
	"golang.org/x/net/html"
)

const template = `<html><body><div class="ajm-pdf-content">
<table><tbody id="drivers-tbody">
<tr class="driver-row"><td><input name="driver_name_1"/></td></tr>
</tbody></table>
<div id="commodities-container"><div class="commodity-item mb-2"><textarea name="commodity_1"></textarea></div></div>
</div></body></html>`

func parse(t *testing.T) *html.Node {
	t.Helper()
	root, err := html.Parse(strings.NewReader(template))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return root
}

func TestAddRow_DriverNumbersFollowExistingRows(t *testing.T) {
	root := parse(t)

	names, err := AddRow(root, Driver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"driver_name_2", "driver_dob_2", "driver_license_2", "driver_state_2"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}

	names, err = AddRow(root, Driver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if names[0] != "driver_name_3" {
		t.Errorf("expected third row, got %v", names)
	}

	rows, err := Rows(root, Driver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 driver rows, got %d", len(rows))
	}
	last := dom.Outer(rows[2])
	if !strings.Contains(last, `name="driver_state_3"`) || !strings.Contains(last, `maxlength="2"`) {
		t.Errorf("unexpected row markup %s", last)
	}
}

func TestAddRow_Commodity(t *testing.T) {
	root := parse(t)
	names, err := AddRow(root, Commodity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"commodity_2"}) {
		t.Errorf("unexpected names %v", names)
	}
	rows, _ := Rows(root, Commodity)
	if !strings.Contains(dom.Outer(rows[1]), `placeholder="Ej: PLASTIC PRODUCTS 30%"`) {
		t.Errorf("unexpected commodity markup %s", dom.Outer(rows[1]))
	}
}

func TestAddRow_MissingContainer(t *testing.T) {
	root := parse(t)
	_, err := AddRow(root, Unit)
	if !errors.Is(err, ErrNoRowContainer) {
		t.Fatalf("expected ErrNoRowContainer, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind(" Driver "); err != nil || k != Driver {
		t.Errorf("expected driver, got %q %v", k, err)
	}
	if _, err := ParseKind("truck"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
