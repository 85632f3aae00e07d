package lotto_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lotto-service/internal/lotto"
	appErr "lotto-service/pkg/errors"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
)

func mustEvent(t *testing.T, typ lotto.EventType, at time.Time, names ...string) lotto.Event {
	t.Helper()
	ev, err := lotto.NewEvent(typ, names, at, nil)
	require.NoError(t, err)
	return ev
}

func TestDedupePreserveOrder(t *testing.T) {
	got, err := lotto.DedupePreserveOrder([]string{" a ", "a", "b"})
	require.NoError(t, err)
	require.Equal(t, ids("a", "b"), got)

	_, err = lotto.DedupePreserveOrder([]string{"a", "   "})
	require.ErrorIs(t, err, appErr.ErrValidation)
}

func TestNormalizePlayer(t *testing.T) {
	id, err := lotto.NormalizePlayer("  Паша\t")
	require.NoError(t, err)
	require.Equal(t, lotto.PlayerID("Паша"), id)

	_, err = lotto.NormalizePlayer(" \n ")
	require.ErrorIs(t, err, appErr.ErrValidation)
}

func TestNewEventValidation(t *testing.T) {
	_, err := lotto.NewEvent(lotto.LineClosed, nil, time.Time{}, nil)
	require.ErrorIs(t, err, appErr.ErrValidation)

	_, err = lotto.NewEvent(lotto.LineClosed, []string{"a", " a"}, time.Time{}, nil)
	require.ErrorIs(t, err, appErr.ErrValidation)

	_, err = lotto.NewEvent(lotto.EventType(99), []string{"a"}, time.Time{}, nil)
	require.ErrorIs(t, err, appErr.ErrValidation)
}

func TestApplyEventLineClosedTwiceRejected(t *testing.T) {
	state, err := lotto.NewState([]string{"A", "B", "C"})
	require.NoError(t, err)

	next, err := lotto.ApplyEvent(state, mustEvent(t, lotto.LineClosed, time.Time{}, "A", "B"))
	require.NoError(t, err)
	require.Equal(t, ids("A", "B"), next.LineWinners())
	require.Empty(t, state.LineWinners(), "original state must not change")

	_, err = lotto.ApplyEvent(next, mustEvent(t, lotto.LineClosed, time.Time{}, "C", "B"))
	require.ErrorIs(t, err, appErr.ErrValidation)

	var engineErr *lotto.Error
	require.True(t, errors.As(err, &engineErr))
	require.Equal(t, ids("B"), engineErr.Players)
	require.Equal(t, "line already closed by: B", engineErr.Error())
}

func TestApplyEventUnknownPlayer(t *testing.T) {
	state, err := lotto.NewState([]string{"known"})
	require.NoError(t, err)

	_, err = lotto.ApplyEvent(state, mustEvent(t, lotto.CardClosed, time.Time{}, "unknown"))
	require.ErrorIs(t, err, appErr.ErrValidation)

	var engineErr *lotto.Error
	require.True(t, errors.As(err, &engineErr))
	require.Equal(t, ids("unknown"), engineErr.Players)
}

func TestApplyEventUnsupportedType(t *testing.T) {
	state, err := lotto.NewState([]string{"A", "B"})
	require.NoError(t, err)

	_, err = lotto.ApplyEvent(state, lotto.Event{Type: lotto.EventType(7), Players: ids("A")})
	require.ErrorIs(t, err, appErr.ErrValidation)
}

func TestApplyEventFirstFinishWins(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	stamped := time.Date(2031, 3, 1, 19, 0, 0, 0, time.UTC)
	clock.Set(stamped).MustWait(ctx)

	state, err := lotto.NewState([]string{"A", "B", "C"}, lotto.WithClock(clock))
	require.NoError(t, err)
	require.False(t, state.Finished())

	first, err := lotto.ApplyEvent(state, mustEvent(t, lotto.CardClosed, time.Time{}, "B"))
	require.NoError(t, err)
	finishedAt, ok := first.FinishedAt()
	require.True(t, ok)
	require.Equal(t, stamped, finishedAt)

	later := stamped.Add(5 * time.Minute)
	second, err := lotto.ApplyEvent(first, mustEvent(t, lotto.CardClosed, later, "A", "B"))
	require.NoError(t, err)
	require.Equal(t, ids("B", "A"), second.Winners())
	finishedAt, _ = second.FinishedAt()
	require.Equal(t, stamped, finishedAt)
	require.Len(t, second.Events(), 2)
	require.Len(t, first.Events(), 1)
}

func TestApplyEventCardUsesEventTimestamp(t *testing.T) {
	at := time.Date(2030, 12, 31, 23, 0, 0, 0, time.UTC)
	state, err := lotto.NewState([]string{"A", "B"})
	require.NoError(t, err)

	next, err := lotto.ApplyEvent(state, mustEvent(t, lotto.CardClosed, at, "A"))
	require.NoError(t, err)
	finishedAt, ok := next.FinishedAt()
	require.True(t, ok)
	require.Equal(t, at, finishedAt)
}

func TestSettleStateFromEvents(t *testing.T) {
	state, err := lotto.NewState([]string{"Альберт", "Паша", "Лена", "Оля"})
	require.NoError(t, err)
	for _, ev := range []lotto.Event{
		mustEvent(t, lotto.LineClosed, time.Time{}, "Альберт"),
		mustEvent(t, lotto.LineClosed, time.Time{}, "Паша"),
		mustEvent(t, lotto.CardClosed, time.Time{}, "Альберт", "Паша"),
	} {
		state, err = lotto.ApplyEvent(state, ev)
		require.NoError(t, err)
	}

	res, err := lotto.SettleState(state, mustSettings(t, 1000, 500))
	require.NoError(t, err)
	require.Equal(t, lotto.NetBalance{"Альберт": 2000, "Паша": 2000, "Лена": -2000, "Оля": -2000}, res.Net)
	require.Equal(t, []lotto.Transfer{
		{From: "Лена", To: "Альберт", Amount: 2000},
		{From: "Оля", To: "Паша", Amount: 2000},
	}, res.Transfers)
}
