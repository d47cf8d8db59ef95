package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

func entry(level model.Level, msg string, args ...model.Value) model.LogEntry {
	return model.LogEntry{ID: "e", Level: level, Message: msg, Args: args}
}

func TestAdmitNoFilters(t *testing.T) {
	d := Admit(entry(model.LevelDebug, "anything"), model.DefaultSettings())
	assert.True(t, d.Admitted)
	assert.Empty(t, d.Reason)
}

func TestAdmitContentFilter(t *testing.T) {
	s := model.DefaultSettings()
	s.ContentFilter = "error"

	assert.True(t, Admit(entry(model.LevelLog, "An ERROR occurred"), s).Admitted)
	assert.True(t, Admit(entry(model.LevelLog, "request", model.StringValue("network error")), s).Admitted)

	d := Admit(entry(model.LevelLog, "all good"), s)
	assert.False(t, d.Admitted)
	assert.Equal(t, model.ReasonContent, d.Reason)
}

func TestAdmitLevelAllowlist(t *testing.T) {
	s := model.DefaultSettings()
	s.AllowedLogLevels = []string{"Warning", "error"}

	assert.True(t, Admit(entry(model.LevelWarn, "w"), s).Admitted)
	assert.True(t, Admit(entry(model.LevelError, "e"), s).Admitted)

	d := Admit(entry(model.LevelInfo, "i"), s)
	assert.False(t, d.Admitted)
	assert.Equal(t, model.ReasonLevel, d.Reason)
}

func TestAdmitSourceFilter(t *testing.T) {
	s := model.DefaultSettings()
	s.SourceFilter = "Checkout"

	e := entry(model.LevelLog, "x")
	e.Source = &model.SourceLocation{File: "https://shop.dev/checkout.js", Line: 3}
	assert.True(t, Admit(e, s).Admitted)

	e.Source = &model.SourceLocation{File: "app.js", Raw: "at pay (checkout/pay.js:1:1)"}
	assert.True(t, Admit(e, s).Admitted)

	e.Source = nil
	d := Admit(e, s)
	assert.False(t, d.Admitted)
	assert.Equal(t, model.ReasonSource, d.Reason)
}

func TestAdmitFiltersAreConjunctive(t *testing.T) {
	s := model.DefaultSettings()
	s.AllowedLogLevels = []string{"error"}
	s.ContentFilter = "timeout"

	assert.False(t, Admit(entry(model.LevelError, "boom"), s).Admitted)
	assert.False(t, Admit(entry(model.LevelWarn, "timeout"), s).Admitted)
	assert.True(t, Admit(entry(model.LevelError, "timeout"), s).Admitted)
}

func TestAdmitBlankFilterIsIgnored(t *testing.T) {
	s := model.DefaultSettings()
	s.ContentFilter = "   "
	assert.True(t, Admit(entry(model.LevelLog, "x"), s).Admitted)
}
