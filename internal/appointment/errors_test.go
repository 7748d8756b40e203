package appointment

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIs_MatchesKind(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", ErrTherapistNotFound)

	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.ErrorIs(t, wrapped, ErrTherapistNotFound)
	assert.NotErrorIs(t, wrapped, ErrPatientNotFound)
	assert.NotErrorIs(t, wrapped, ErrValidation)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(validationErrorf("bad %s", "input")))
	assert.Equal(t, KindInvalidState, KindOf(fmt.Errorf("wrap: %w", invalidStateErrorf("busy"))))
	assert.Equal(t, KindNotFound, KindOf(ErrAppointmentNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("connection reset")))
}

func TestResult_JSONShape(t *testing.T) {
	ok, err := json.Marshal(ResultOf([]int{1, 2}, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"value":[1,2]}`, string(ok))

	failed, err := json.Marshal(ResultOf[*Appointment](nil, ErrAppointmentNotFound))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false,"errorKind":"NotFoundError","message":"appointment not found"}`, string(failed))
}

func TestResult_EmptyValuesAreKept(t *testing.T) {
	noSlots, err := json.Marshal(ResultOf([]Slot{}, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"value":[]}`, string(noSlots))

	no, err := json.Marshal(ResultOf(false, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"value":false}`, string(no))

	zero, err := json.Marshal(ResultOf(0, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"value":0}`, string(zero))
}

func TestResult_HidesInternalDetail(t *testing.T) {
	r := Failure[int](errors.New("pq: password authentication failed"))

	assert.False(t, r.OK)
	assert.Equal(t, KindInternal, r.ErrorKind)
	assert.Equal(t, "internal error", r.Message)
}
