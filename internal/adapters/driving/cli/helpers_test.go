package cli

import (
	"bytes"
	"context"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driving"
)

// mockDispatcher implements driving.Dispatcher for testing.
type mockDispatcher struct {
	lastCmd domain.Command
	result  *driving.CommandResult
	err     error
}

func (m *mockDispatcher) Dispatch(_ context.Context, cmd domain.Command) (*driving.CommandResult, error) {
	m.lastCmd = cmd
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockProgressStream implements driving.ProgressStream for testing.
type mockProgressStream struct {
	events []driving.ProgressEvent
	err    error
}

func (m *mockProgressStream) Subscribe(_ context.Context, _, _ string) (<-chan driving.ProgressEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	ch := make(chan driving.ProgressEvent, len(m.events))
	for _, event := range m.events {
		ch <- event
	}
	close(ch)
	return ch, nil
}

func setupDispatchTest(result *driving.CommandResult) (*mockDispatcher, func()) {
	old := dispatcher
	mock := &mockDispatcher{result: result}
	dispatcher = mock
	return mock, func() {
		dispatcher = old
	}
}

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
