package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		max       int
		wantErr   bool
		wantRoles []string
	}{
		{
			name:      "plain object",
			raw:       twoExpertPlan,
			max:       4,
			wantRoles: []string{"Security Analyst", "Historian"},
		},
		{
			name:      "markdown fences and prose",
			raw:       "Here is the plan:\n```json\n" + twoExpertPlan + "\n```\nGood luck.",
			max:       4,
			wantRoles: []string{"Security Analyst", "Historian"},
		},
		{
			name:      "empty experts",
			raw:       `{"thought_process": "simple", "experts": []}`,
			max:       4,
			wantRoles: nil,
		},
		{
			name:    "missing experts",
			raw:     `{"thought_process": "hmm"}`,
			max:     4,
			wantErr: true,
		},
		{
			name:    "experts not a list",
			raw:     `{"thought_process": "hmm", "experts": {"role": "x"}}`,
			max:     4,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     "I could not decide.",
			max:     4,
			wantErr: true,
		},
		{
			name: "drops incomplete entries",
			raw: `{"thought_process": "", "experts": [
				{"role": "", "prompt": "p"},
				{"role": "Critic", "prompt": ""},
				{"role": "Engineer", "description": "builds", "temperature": 0.5, "prompt": "build it"}
			]}`,
			max:       4,
			wantRoles: []string{"Engineer"},
		},
		{
			name: "caps count",
			raw: `{"experts": [
				{"role": "A", "prompt": "a"}, {"role": "B", "prompt": "b"}, {"role": "C", "prompt": "c"}
			]}`,
			max:       2,
			wantRoles: []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlan(tt.raw, tt.max)
			if tt.wantErr {
				var invalid *InvalidPlanError
				if !errors.As(err, &invalid) {
					t.Fatalf("err = %v, want *InvalidPlanError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePlan: %v", err)
			}
			var roles []string
			for _, s := range got.Specs {
				roles = append(roles, s.Role)
			}
			if strings.Join(roles, ",") != strings.Join(tt.wantRoles, ",") {
				t.Errorf("roles = %v, want %v", roles, tt.wantRoles)
			}
		})
	}
}

func TestParsePlan_Temperatures(t *testing.T) {
	raw := `{"experts": [
		{"role": "Cold", "prompt": "p", "temperature": -1},
		{"role": "Hot", "prompt": "p", "temperature": 7},
		{"role": "Unset", "prompt": "p"},
		{"role": "Normal", "prompt": "p", "temperature": 0.7}
	]}`
	got, err := ParsePlan(raw, 10)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	want := []float64{0, 2, 1, 0.7}
	for i, s := range got.Specs {
		if s.Temperature != want[i] {
			t.Errorf("%s temperature = %v, want %v", s.Role, s.Temperature, want[i])
		}
	}
}

func TestManagerAnalyze_CancelledContext(t *testing.T) {
	client := newFakeClient(twoExpertPlan)
	m := NewManager(client, testPolicy(), 4, NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := m.Analyze(ctx, "m", "q", "", 0)
	if got.Rationale != "Direct processing." {
		t.Errorf("Rationale = %q, want fallback", got.Rationale)
	}
	if client.planCalls != 0 {
		t.Errorf("manager called %d times after cancellation", client.planCalls)
	}
}

func TestSpecialistSpecs(t *testing.T) {
	a, err := ParsePlan(twoExpertPlan, 4)
	if err != nil {
		t.Fatal(err)
	}
	specs := SpecialistSpecs(a)
	if len(specs) != 2 || specs[0].ID != "expert-1" || specs[1].ID != "expert-2" {
		t.Errorf("specs = %+v", specs)
	}
	if specs[1].Temperature != 1.2 {
		t.Errorf("temperature = %v", specs[1].Temperature)
	}
}
