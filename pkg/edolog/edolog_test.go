package edolog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	uzap "go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/edo-build/edo/pkg/edolog"
)

func TestNewProductionPresetDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		log := edolog.New(edolog.Options{})
		log.Info("hello")
	})
}

func TestNewDevelopmentPresetDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		log := edolog.New(edolog.Options{Development: true})
		log.Info("hello")
	})
}

func TestNewFromCoreWrapsProvidedZapLogger(t *testing.T) {
	core, logs := observer.New(uzap.DebugLevel)
	log := edolog.NewFromCore(uzap.New(core))
	log.Info("marker", "key", "value")

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "marker", entries[0].Message)
}

func TestDiscardLoggerProducesNoOutput(t *testing.T) {
	assert.NotPanics(t, func() {
		log := edolog.Discard()
		log.Info("ignored")
	})
}
