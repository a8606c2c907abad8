package scenario

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_MarshalYAML(t *testing.T) {
	tests := []struct {
		d    Duration
		want string
	}{
		{Duration(0), "0s"},
		{Duration(100 * time.Millisecond), "100ms"},
		{Duration(90 * time.Second), "1m30s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := tt.d.MarshalYAML()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		input   string
		want    Duration
		wantErr bool
	}{
		{"100ms", Duration(100 * time.Millisecond), false},
		{"1m", Duration(time.Minute), false},
		{"not-a-duration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalYAML(func(v any) error {
				s, ok := v.(*string)
				if !ok {
					return fmt.Errorf("expected *string, got %T", v)
				}
				*s = tt.input

				return nil
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
			assert.Equal(t, time.Duration(tt.want), d.AsDuration())
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindInternal, Kind("").Normalize())
	assert.Equal(t, KindServer, Kind("SERVER").Normalize())
	assert.True(t, Kind("Consumer").Valid())
	assert.False(t, Kind("batch").Valid())
}

func TestBuiltin(t *testing.T) {
	tests := []struct {
		name     string
		spans    int
		services []string
	}{
		{"payment", 7, []string{"fraud-detection", "ml-service", "notification-service", "payment-gateway", "payment-processor", "payment-service"}},
		{"edge-iot", 6, []string{"device-gateway", "device-registry", "rule-engine", "telemetry-processor"}},
		{"ecommerce", 7, []string{"api-gateway", "inventory-service", "order-service", "pricing-service"}},
		{"health-check", 1, []string{"health-service"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := Get(tt.name)
			require.True(t, ok)
			require.NoError(t, s.Validate())
			assert.NotEmpty(t, s.Description)
			assert.Equal(t, tt.spans, s.Spans())
			assert.Equal(t, tt.services, s.Services())
		})
	}
}

func TestPayment_FansOut(t *testing.T) {
	s := Payment()

	require.Len(t, s.Root.Children, 2)
	process := s.Root.Children[0]
	assert.True(t, process.Parallel)
	require.Len(t, process.Children, 2)
	assert.Equal(t, "AnalyzeTransaction", process.Children[0].Name)
	assert.Equal(t, "ChargeCard", process.Children[1].Name)
	assert.InDelta(t, 0.05, process.Children[1].ErrorRate, 1e-9)
	assert.Equal(t, "POST", s.Root.Attributes["http.request.method"])
	assert.Equal(t, "200", s.Root.Attributes["http.response.status_code"])
}

func TestWalk_Depth(t *testing.T) {
	s := Ecommerce()

	depths := map[string]int{}
	s.Root.Walk(func(step *Step, depth int) { depths[step.Name] = depth })

	assert.Equal(t, 0, depths["POST /orders"])
	assert.Equal(t, 1, depths["CreateOrder"])
	assert.Equal(t, 3, depths["SELECT stock"])
}

func TestValidate(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{Name: "v", Root: step("root", "svc", KindServer, ms).then(step("child", "svc", "", ms))}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(s *Scenario)
		errMsg string
	}{
		{"no name", func(s *Scenario) { s.Name = "" }, "scenario name is required"},
		{"unnamed step", func(s *Scenario) { s.Root.Children[0].Name = "" }, "depth 1 has no name"},
		{"bad kind", func(s *Scenario) { s.Root.Kind = "batch" }, `unknown kind "batch"`},
		{"bad rate", func(s *Scenario) { s.Root.ErrorRate = 1.5 }, "error rate 1.5 out of range"},
		{"bad level", func(s *Scenario) { s.Root.Level = "loud" }, `unknown level "loud"`},
		{"bad event level", func(s *Scenario) { s.Root.Events = []Event{{Level: "fatal", Message: "x"}} }, `event "x": unknown level "fatal"`},
		{"bad baggage", func(s *Scenario) { s.Baggage = map[string]string{"tenant id": "acme"} }, `baggage "tenant id"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRegister(t *testing.T) {
	custom := &Scenario{Name: "test-custom", Root: step("only", "svc", KindInternal, ms)}
	Register(custom)
	t.Cleanup(func() { Unregister("test-custom") })

	s, ok := Get("test-custom")
	require.True(t, ok)
	assert.Same(t, custom, s)

	var names []string
	for _, s := range List() {
		names = append(names, s.Name)
	}
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "test-custom")

	_, ok = Get("non-existent")
	assert.False(t, ok)
}
