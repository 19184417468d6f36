package kernel_test

import (
	"errors"
	"os"
	"testing"

	"github.com/kodflow/daemon/internal/kernel"
	"github.com/stretchr/testify/assert"
)

func TestClassifyNoSuchProcess(t *testing.T) {
	err := kernel.Send(1<<30, os.Interrupt)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, kernel.ErrProcessNotFound))
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, kernel.Classify(nil))
}
