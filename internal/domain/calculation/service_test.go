package calculation

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/vitalscores/internal/domain/scoring"
	"github.com/ehr/vitalscores/internal/domain/vitals"
	"github.com/ehr/vitalscores/internal/platform/metrics"
	"github.com/ehr/vitalscores/pkg/optional"
)

func normalUpdate() *vitals.Update {
	return vitals.NewUpdate().
		RespiratoryRate(16).
		OxygenSaturation(98).
		SupplementalOxygen(false).
		Temperature(37.0).
		SystolicBP(120).
		HeartRate(70).
		ConsciousnessLevel(vitals.Alert)
}

type recorder struct {
	mu      sync.Mutex
	results []CalculationResults
}

func (r *recorder) listen(res CalculationResults) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func (r *recorder) last() CalculationResults {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[len(r.results)-1]
}

func TestNewService_StartsEmpty(t *testing.T) {
	svc := NewService()
	assert.Equal(t, vitals.Empty(), svc.CurrentVitalSigns())
	assert.False(t, svc.HasAnyCalculableData())
	assert.Equal(t, CalculationResults{}, svc.CalculateBothScores())
}

func TestService_Subscribe_DeliversCurrentResultImmediately(t *testing.T) {
	svc := NewService()
	svc.UpdateVitalSigns(normalUpdate())

	rec := &recorder{}
	svc.Subscribe(rec.listen)

	require.Equal(t, 1, rec.count())
	assert.Equal(t, optional.Some(0), rec.last().NEWS2.Score)
	assert.True(t, rec.last().QSOFA.IsComplete)
}

func TestService_UpdateNotifiesOncePerCall(t *testing.T) {
	svc := NewService()
	rec := &recorder{}
	unsubscribe := svc.Subscribe(rec.listen)
	require.Equal(t, 1, rec.count())

	svc.UpdateVitalSigns(vitals.NewUpdate().RespiratoryRate(20))
	assert.Equal(t, 2, rec.count())

	unsubscribe()
	svc.UpdateVitalSigns(vitals.NewUpdate().RespiratoryRate(24))
	svc.Reset()
	assert.Equal(t, 2, rec.count())
}

func TestService_UnsubscribeIsIdempotentAndIndependent(t *testing.T) {
	svc := NewService()
	a, b := &recorder{}, &recorder{}
	unsubA := svc.Subscribe(a.listen)
	svc.Subscribe(b.listen)
	require.Equal(t, 2, svc.SubscriberCount())

	unsubA()
	unsubA()
	assert.Equal(t, 1, svc.SubscriberCount())

	svc.UpdateVitalSigns(vitals.NewUpdate().HeartRate(80))
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 2, b.count())
}

func TestService_SameListenerSubscribedTwice(t *testing.T) {
	svc := NewService()
	rec := &recorder{}
	unsubFirst := svc.Subscribe(rec.listen)
	svc.Subscribe(rec.listen)
	assert.Equal(t, 2, rec.count())

	unsubFirst()
	svc.UpdateVitalSigns(vitals.NewUpdate().HeartRate(80))
	assert.Equal(t, 3, rec.count())
}

func TestService_NotifiesInSubscriptionOrder(t *testing.T) {
	svc := NewService()
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		svc.Subscribe(func(CalculationResults) { order = append(order, name) })
	}
	order = nil

	svc.UpdateVitalSigns(vitals.NewUpdate().SystolicBP(110))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestService_ListenerMayUnsubscribeAnother(t *testing.T) {
	svc := NewService()
	second := &recorder{}
	var unsubSecond func()
	armed := false
	svc.Subscribe(func(CalculationResults) {
		if armed {
			unsubSecond()
		}
	})
	unsubSecond = svc.Subscribe(second.listen)
	armed = true

	svc.UpdateVitalSigns(vitals.NewUpdate().HeartRate(90))
	assert.Equal(t, 1, second.count())
	assert.Equal(t, 1, svc.SubscriberCount())
}

func TestService_ListenerMayReadState(t *testing.T) {
	svc := NewService()
	var seen vitals.VitalSigns
	svc.Subscribe(func(CalculationResults) { seen = svc.CurrentVitalSigns() })

	svc.UpdateVitalSigns(vitals.NewUpdate().Temperature(38.4))
	assert.Equal(t, optional.Some(38.4), seen.Temperature)
}

func TestService_ListenerMayUpdate(t *testing.T) {
	svc := NewService()
	var order []string
	svc.Subscribe(func(r CalculationResults) {
		if hr, ok := svc.CurrentVitalSigns().HeartRate.Get(); ok && hr == 130 {
			svc.UpdateVitalSigns(vitals.NewUpdate().HeartRate(90))
		}
		order = append(order, "first")
	})
	second := &recorder{}
	svc.Subscribe(func(r CalculationResults) {
		order = append(order, "second")
		second.listen(r)
	})
	order = nil

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.UpdateVitalSigns(vitals.NewUpdate().HeartRate(130))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("update from a listener did not complete")
	}

	assert.Equal(t, []string{"first", "second", "first", "second"}, order)
	assert.Equal(t, 3, second.count())
	assert.Equal(t, optional.Some(90.0), svc.CurrentVitalSigns().HeartRate)
}

func TestService_ListenerMaySubscribe(t *testing.T) {
	svc := NewService()
	late := &recorder{}
	subscribed := false
	svc.Subscribe(func(CalculationResults) {
		if !subscribed && svc.SubscriberCount() == 1 && svc.CurrentVitalSigns().HeartRate.IsPresent() {
			subscribed = true
			svc.Subscribe(late.listen)
		}
	})

	svc.UpdateVitalSigns(vitals.NewUpdate().HeartRate(80))
	require.Equal(t, 1, late.count())
	assert.Equal(t, 2, svc.SubscriberCount())
}

func TestService_RecoversAfterListenerPanic(t *testing.T) {
	svc := NewService()
	rec := &recorder{}
	boom := false
	svc.Subscribe(func(CalculationResults) {
		if boom {
			boom = false
			panic("listener failed")
		}
	})
	svc.Subscribe(rec.listen)

	boom = true
	assert.Panics(t, func() { svc.UpdateVitalSigns(vitals.NewUpdate().HeartRate(80)) })
	assert.Equal(t, 1, rec.count())

	svc.UpdateVitalSigns(vitals.NewUpdate().HeartRate(90))
	assert.Equal(t, 2, rec.count())
}

func TestService_UpdateMergesShallowly(t *testing.T) {
	svc := NewService()
	svc.UpdateVitalSigns(vitals.NewUpdate().RespiratoryRate(16).HeartRate(70))
	svc.UpdateVitalSigns(vitals.NewUpdate().HeartRate(110))
	svc.UpdateVitalSigns(vitals.NewUpdate())

	v := svc.CurrentVitalSigns()
	assert.Equal(t, optional.Some(16.0), v.RespiratoryRate)
	assert.Equal(t, optional.Some(110.0), v.HeartRate)
}

func TestService_UpdateStoresOutOfRangeValues(t *testing.T) {
	svc := NewService()
	svc.UpdateVitalSigns(normalUpdate().HeartRate(400).RespiratoryRate(-3))

	v := svc.CurrentVitalSigns()
	assert.Equal(t, optional.Some(400.0), v.HeartRate)
	assert.Equal(t, optional.Some(-3.0), v.RespiratoryRate)
	assert.True(t, svc.CalculateBothScores().NEWS2.IsComplete)
}

func TestService_CurrentVitalSignsIsACopy(t *testing.T) {
	svc := NewService()
	svc.UpdateVitalSigns(vitals.NewUpdate().HeartRate(70))

	v := svc.CurrentVitalSigns()
	v.HeartRate = optional.Some(200.0)
	v.SupplementalOxygen = true

	again := svc.CurrentVitalSigns()
	assert.Equal(t, optional.Some(70.0), again.HeartRate)
	assert.False(t, again.SupplementalOxygen)
}

func TestService_Reset(t *testing.T) {
	svc := NewService()
	svc.UpdateVitalSigns(normalUpdate().SupplementalOxygen(true))
	rec := &recorder{}
	svc.Subscribe(rec.listen)

	svc.Reset()

	assert.Equal(t, vitals.Empty(), svc.CurrentVitalSigns())
	assert.Equal(t, 2, rec.count())
	assert.False(t, rec.last().NEWS2.IsComplete)
	assert.False(t, rec.last().QSOFA.IsComplete)
}

func TestService_CalculateBothScoresDoesNotNotify(t *testing.T) {
	svc := NewService()
	rec := &recorder{}
	svc.Subscribe(rec.listen)
	svc.UpdateVitalSigns(normalUpdate())

	before := svc.CurrentVitalSigns()
	_ = svc.CalculateBothScores()
	_ = svc.DetailedResults()
	_ = svc.DataCompleteness()

	assert.Equal(t, 2, rec.count())
	assert.Equal(t, before, svc.CurrentVitalSigns())
}

func TestService_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		update     *vitals.Update
		news2      Summary
		qsofa      Summary
		anyScoring bool
	}{
		{
			name:       "all normal",
			update:     normalUpdate(),
			news2:      Summary{Score: optional.Some(0), RiskLevel: optional.Some(scoring.RiskLow), IsComplete: true},
			qsofa:      Summary{Score: optional.Some(0), RiskLevel: optional.Some(scoring.RiskLow), IsComplete: true},
			anyScoring: true,
		},
		{
			name:       "critical",
			update:     vitals.NewUpdate().RespiratoryRate(8).OxygenSaturation(90).SupplementalOxygen(true).Temperature(35.0).SystolicBP(85).HeartRate(130).ConsciousnessLevel(vitals.Voice),
			news2:      Summary{Score: optional.Some(19), RiskLevel: optional.Some(scoring.RiskHigh), IsComplete: true},
			qsofa:      Summary{Score: optional.Some(2), RiskLevel: optional.Some(scoring.RiskHigh), IsComplete: true},
			anyScoring: true,
		},
		{
			name:       "q-SOFA fields only",
			update:     vitals.NewUpdate().RespiratoryRate(22).SystolicBP(95).ConsciousnessLevel(vitals.Alert).SupplementalOxygen(false),
			news2:      Summary{},
			qsofa:      Summary{Score: optional.Some(2), RiskLevel: optional.Some(scoring.RiskHigh), IsComplete: true},
			anyScoring: true,
		},
		{
			name:   "nothing scorable",
			update: vitals.NewUpdate().HeartRate(80).Temperature(37),
			news2:  Summary{},
			qsofa:  Summary{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService()
			rec := &recorder{}
			svc.Subscribe(rec.listen)

			svc.UpdateVitalSigns(tt.update)

			got := rec.last()
			assert.Equal(t, tt.news2, got.NEWS2)
			assert.Equal(t, tt.qsofa, got.QSOFA)
			assert.Equal(t, got, svc.CalculateBothScores())
			assert.Equal(t, tt.anyScoring, svc.HasAnyCalculableData())
		})
	}
}

func TestService_DetailedResults(t *testing.T) {
	svc := NewService()
	svc.UpdateVitalSigns(normalUpdate().HeartRate(115))

	d := svc.DetailedResults()
	require.True(t, d.NEWS2.IsComplete)
	p, ok := d.NEWS2.Breakdown.Points(vitals.FieldHeartRate)
	require.True(t, ok)
	assert.Equal(t, 2, p)
	assert.Len(t, d.QSOFA.Breakdown, 3)
	assert.Equal(t, svc.CalculateBothScores(), d.Summary())
}

func TestService_DataCompleteness(t *testing.T) {
	svc := NewService()
	svc.UpdateVitalSigns(vitals.NewUpdate().RespiratoryRate(16).HeartRate(70))

	c := svc.DataCompleteness()

	assert.False(t, c.NEWS2.IsComplete)
	assert.Equal(t, 33, c.NEWS2.CompletionPercentage)
	assert.Equal(t, []vitals.Field{
		vitals.FieldOxygenSaturation,
		vitals.FieldTemperature,
		vitals.FieldSystolicBP,
		vitals.FieldConsciousnessLevel,
	}, c.NEWS2.MissingFields)

	assert.False(t, c.QSOFA.IsComplete)
	assert.Equal(t, 33, c.QSOFA.CompletionPercentage)
	assert.Equal(t, []vitals.Field{vitals.FieldSystolicBP, vitals.FieldConsciousnessLevel}, c.QSOFA.MissingFields)

	svc.UpdateVitalSigns(normalUpdate())
	c = svc.DataCompleteness()
	assert.Equal(t, SystemCompleteness{IsComplete: true, MissingFields: []vitals.Field{}, CompletionPercentage: 100}, c.NEWS2)
	assert.Equal(t, 100, c.QSOFA.CompletionPercentage)
}

func TestService_Requirements(t *testing.T) {
	svc := NewService()

	req := svc.FieldRequirements()
	assert.Len(t, req.NEWS2, 7)
	assert.Contains(t, req.NEWS2, vitals.FieldSupplementalOxygen)
	assert.Equal(t, []vitals.Field{vitals.FieldRespiratoryRate, vitals.FieldSystolicBP, vitals.FieldConsciousnessLevel}, req.QSOFA)
	assert.Equal(t, req.QSOFA, req.Shared)

	minimum := svc.MinimumDataRequirements()
	assert.Len(t, minimum.ForNEWS2, 6)
	assert.NotContains(t, minimum.ForNEWS2, vitals.FieldSupplementalOxygen)
	assert.Equal(t, minimum.ForQSOFA, minimum.ForEither)
	assert.Equal(t, req.Shared, minimum.ForEither)
}

func TestService_ConcurrentUpdatesAreAtomicToListeners(t *testing.T) {
	svc := NewService()
	var deliveries atomic.Int64
	var torn atomic.Int64
	svc.Subscribe(func(CalculationResults) {
		deliveries.Add(1)
		v := svc.CurrentVitalSigns()
		rr, okRR := v.RespiratoryRate.Get()
		sbp, okSBP := v.SystolicBP.Get()
		if okRR != okSBP || (okRR && sbp != rr+100) {
			torn.Add(1)
		}
	})

	const writers = 16
	const perWriter = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				n := float64(w*perWriter + i)
				svc.UpdateVitalSigns(vitals.NewUpdate().RespiratoryRate(n).SystolicBP(n + 100))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int64(writers*perWriter+1), deliveries.Load())
	assert.Zero(t, torn.Load())
}

func TestService_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	svc := NewService(WithMetrics(m))

	unsubscribe := svc.Subscribe(func(CalculationResults) {})
	svc.Subscribe(func(CalculationResults) {})
	svc.UpdateVitalSigns(normalUpdate())
	unsubscribe()

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[mf.GetName()] += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[mf.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}

	// two immediate deliveries plus one update pass over two subscribers
	assert.Equal(t, 4.0, values["vitalscores_engine_notifications_total"])
	assert.Equal(t, 1.0, values["vitalscores_engine_subscribers"])
	// one calculation per system for each of the three passes
	assert.Equal(t, 6.0, values["vitalscores_engine_recalculations_total"])
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "vitalscores_engine_calculation_duration_seconds"))
}

func TestService_LogsFieldNamesNotValues(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	svc := NewService(WithLogger(logger))

	svc.UpdateVitalSigns(vitals.NewUpdate().HeartRate(137.5))

	out := buf.String()
	assert.Contains(t, out, "heartRate")
	assert.Contains(t, out, "vital signs updated")
	assert.NotContains(t, out, "137.5")
}
