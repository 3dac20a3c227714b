package scenarios

import (
	"testing"

	"github.com/voltmesh/fex/core/facility"
	"github.com/voltmesh/fex/core/model"
)

// RunScenario evaluates every offer of the scenario against its templates and
// checks the expected decisions.
func RunScenario(t *testing.T, sc *Scenario) {
	templates := make([]facility.Template, len(sc.Templates))
	for i, d := range sc.Templates {
		tpl, err := d.ToModel()
		if err != nil {
			t.Fatalf("template %s: %v", d.ID, err)
		}
		templates[i] = tpl
	}

	for _, od := range sc.Offers {
		pm, err := od.PriceMap.ToModel()
		if err != nil {
			t.Fatalf("offer %s: %v", od.Name, err)
		}
		want, ok := model.ParseExecutionState(od.Expected.State)
		if !ok {
			t.Fatalf("offer %s: unknown state %s", od.Name, od.Expected.State)
		}
		dec := facility.Evaluate(pm, templates)
		if dec.State != want {
			t.Errorf("scenario %s offer %s: expected %s, got %s", sc.Name, od.Name, want, dec.State)
		}
		if od.Expected.TemplateID != "" && dec.TemplateID != od.Expected.TemplateID {
			t.Errorf("scenario %s offer %s: expected template %s, got %s", sc.Name, od.Name, od.Expected.TemplateID, dec.TemplateID)
		}
	}
}
