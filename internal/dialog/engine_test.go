package dialog

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pair-alert-bot/internal/types"
)

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) SubmitRule(ctx context.Context, s types.Submission) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

var alice = types.Owner{ID: 7, Name: "alice"}

func newEngine(submitter Submitter) *Engine {
	tree := NewTree(NewUniverse(types.Snapshot{"BTC": 60000, "ETH": 3000, "USDC": 1}))
	return NewEngine(tree, submitter)
}

func feed(t *testing.T, e *Engine, inputs ...string) Reply {
	t.Helper()
	var reply Reply
	for _, input := range inputs {
		var err error
		reply, err = e.Accept(context.Background(), alice, input)
		require.NoError(t, err, input)
	}
	return reply
}

func TestEngine_Start(t *testing.T) {
	e := newEngine(&MockSubmitter{})

	reply := e.Start(alice)
	assert.Equal(t, "Select what you want to do", reply.Text)
	assert.Equal(t, []string{LabelSetNotification, LabelGetRate}, reply.Options)
	assert.False(t, reply.Complete)
}

func TestEngine_SetNotificationEmitsSubmission(t *testing.T) {
	submitter := &MockSubmitter{}
	expected := types.Submission{Owner: alice, PairA: "BTC", PairB: "USDC", Threshold: 50000, Direction: types.DirectionAbove}
	submitter.On("SubmitRule", mock.Anything, expected).Return(nil).Once()
	e := newEngine(submitter)

	reply := feed(t, e, LabelSetNotification)
	assert.Equal(t, []string{"BTC", "ETH", "USDC"}, reply.Options)

	reply = feed(t, e, "BTC")
	assert.Equal(t, []string{"ETH", "USDC"}, reply.Options)

	reply = feed(t, e, "USDC")
	assert.Contains(t, reply.Text, "The current rate for BTC/USDC is: 60000 USDC")
	assert.Equal(t, []string{LabelExceeds, LabelLowerThan, LabelCrosses}, reply.Options)

	reply = feed(t, e, LabelExceeds)
	assert.True(t, reply.RemoveKeyboard)
	assert.Empty(t, reply.Options)

	reply = feed(t, e, "50000 USDC")
	assert.True(t, reply.Complete)
	assert.Contains(t, reply.Text, "you set the price 50000 USDC for the cryptocurrency pair BTC/USDC")
	assert.Contains(t, reply.Text, "when the current price exceeds the set value")

	submitter.AssertExpectations(t)
	assert.Empty(t, e.State(alice.ID).Path)
}

func TestEngine_CrossesSubmitsUnresolvedDirection(t *testing.T) {
	submitter := &MockSubmitter{}
	submitter.On("SubmitRule", mock.Anything, mock.MatchedBy(func(s types.Submission) bool {
		return s.Direction == types.DirectionUnresolved && s.Threshold == 0.5
	})).Return(nil).Once()
	e := newEngine(submitter)

	feed(t, e, LabelSetNotification, "ETH", "BTC", LabelCrosses, "0,5")
	submitter.AssertExpectations(t)
}

func TestEngine_InvalidSelectionLeavesStateUnchanged(t *testing.T) {
	e := newEngine(&MockSubmitter{})
	feed(t, e, LabelSetNotification, "BTC")
	before := e.State(alice.ID)

	_, err := e.Accept(context.Background(), alice, "BTC")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"ETH", "USDC"}, verr.Options)
	assert.Contains(t, verr.Message, "The cryptocurrency you entered BTC is not available")
	assert.Contains(t, verr.Message, "(ETH, USDC)")
	assert.Equal(t, before, e.State(alice.ID))
}

func TestEngine_InvalidNumberLeavesStateUnchanged(t *testing.T) {
	submitter := &MockSubmitter{}
	e := newEngine(submitter)
	feed(t, e, LabelSetNotification, "BTC", "USDC", LabelLowerThan)
	before := e.State(alice.ID)

	_, err := e.Accept(context.Background(), alice, "-5")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Nil(t, verr.Options)
	assert.Contains(t, verr.Message, "The price you entered (-5) is incorrect")
	assert.Equal(t, before, e.State(alice.ID))
	submitter.AssertNotCalled(t, "SubmitRule", mock.Anything, mock.Anything)
}

func TestEngine_FailedSubmissionLeavesStateUnchanged(t *testing.T) {
	submitter := &MockSubmitter{}
	submitter.On("SubmitRule", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	e := newEngine(submitter)
	feed(t, e, LabelSetNotification, "BTC", "USDC", LabelExceeds)
	before := e.State(alice.ID)

	_, err := e.Accept(context.Background(), alice, "100")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, before, e.State(alice.ID))
}

func TestEngine_GetCurrentRate(t *testing.T) {
	e := newEngine(&MockSubmitter{})

	reply := feed(t, e, LabelGetRate, "BTC", "ETH")
	assert.True(t, reply.Complete)
	assert.Equal(t, "Alright, the current rate for BTC/ETH is: 20 ETH", reply.Text)
	assert.Empty(t, e.State(alice.ID).Path)
}

func TestEngine_RestartsWhenUniverseChanges(t *testing.T) {
	e := newEngine(&MockSubmitter{})
	feed(t, e, LabelSetNotification, "ETH")

	e.SetUniverse(types.Snapshot{"BTC": 60000, "USDC": 1})
	reply, err := e.Accept(context.Background(), alice, "USDC")

	require.NoError(t, err)
	assert.True(t, reply.Restarted)
	assert.Equal(t, []string{LabelSetNotification, LabelGetRate}, reply.Options)
	assert.Empty(t, e.State(alice.ID).Path)
}

func TestEngine_IgnoresEmptySnapshot(t *testing.T) {
	e := newEngine(&MockSubmitter{})

	e.SetUniverse(types.Snapshot{})
	assert.Equal(t, 60000.0, e.Universe().Prices["BTC"])
}

func TestEngine_CurrentRepeatsPrompt(t *testing.T) {
	e := newEngine(&MockSubmitter{})
	feed(t, e, LabelGetRate)

	reply := e.Current(alice)
	assert.Equal(t, "Alright, enter the cryptocurrency you want to monitor", reply.Text)
	assert.Equal(t, []string{"BTC", "ETH", "USDC"}, reply.Options)
	assert.Equal(t, []string{LabelGetRate}, e.State(alice.ID).Path)
}

func TestEngine_SessionsAreIndependent(t *testing.T) {
	e := newEngine(&MockSubmitter{})
	bob := types.Owner{ID: 8, Name: "bob"}

	feed(t, e, LabelSetNotification)
	_, err := e.Accept(context.Background(), bob, LabelGetRate)
	require.NoError(t, err)

	assert.Equal(t, []string{LabelSetNotification}, e.State(alice.ID).Path)
	assert.Equal(t, []string{LabelGetRate}, e.State(bob.ID).Path)
}

func TestSeedUniverse_ShowsUnavailableRate(t *testing.T) {
	e := NewEngine(NewTree(SeedUniverse([]string{"ETH", "BTC", "ETH"})), &MockSubmitter{})

	reply := feed(t, e, LabelGetRate)
	assert.Equal(t, []string{"BTC", "ETH"}, reply.Options)

	reply = feed(t, e, "BTC", "ETH")
	assert.Contains(t, reply.Text, `couldn't find "BTC"`)
}
