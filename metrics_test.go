package fedquery

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugr-lab/fedquery/filter"
	"github.com/hugr-lab/fedquery/source"
	"github.com/hugr-lab/fedquery/translate"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	tr := newTranslator(t, translate.ProfileConfluence)
	f := newFederator(t, Config{
		Metrics: m,
		Sources: []Source{
			{Name: "ok", Translator: tr, Executor: &fakeExecutor{ids: []string{"1"}}},
			{Name: "down", Translator: tr, Executor: &fakeExecutor{err: source.Unavailable("down", errors.New("503"))}},
			{Name: "picky", Translator: tr, Executor: &fakeExecutor{}, SkipWildcardOnly: true},
		},
	})

	_, err := f.Search(context.Background(), Query{Filter: filter.Attribute("title").EqualTo("x")})
	require.NoError(t, err)
	_, err = f.Search(context.Background(), Query{Filter: filter.Attribute(filter.AnyText).Like("*")})
	require.NoError(t, err)
	_, err = f.Search(context.Background(), Query{Filter: filter.Attribute("unknown").EqualTo("x")})
	require.NoError(t, err)
	_, err = f.Translate(filter.Attribute("title").EqualTo(nil))
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Translations.WithLabelValues("ok", OutcomeTranslated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Translations.WithLabelValues("ok", OutcomeUnsupported)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Translations.WithLabelValues("ok", OutcomeInvalid)))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackendErrors.WithLabelValues("down", "unavailable")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BackendErrors))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceSkips.WithLabelValues("picky", string(SkipWildcardOnly))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceSkips.WithLabelValues("picky", string(SkipUnsupported))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceSkips.WithLabelValues("ok", string(SkipUnsupported))))

	assert.Equal(t, 3, testutil.CollectAndCount(m.SearchDuration))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.ElementsMatch(t, []string{
		"fedquery_translations_total",
		"fedquery_backend_errors_total",
		"fedquery_source_skips_total",
		"fedquery_search_duration_seconds",
	}, names)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.recordTranslation("a", OutcomeTranslated)
	m.recordSkip("a", SkipUnsupported)
	m.recordQuery("a", 0, source.ErrBackendTransportError)
}
