package main

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/srg/blelink/internal/testutils"
	"github.com/srg/blelink/pkg/config"
	"github.com/srg/blelink/pkg/lifecycle"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// syncBuffer is a bytes.Buffer safe for the printer goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CommandTestSuite swaps the go-ble backend for controllable fakes.
type CommandTestSuite struct {
	suite.Suite
	helper    *testutils.TestHelper
	requester *testutils.ControlledRequester
	retriever *testutils.ControlledRetriever

	prevBackend func(*config.Config, *logrus.Logger) backend
}

func (s *CommandTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.requester = testutils.NewControlledRequester()
	s.retriever = testutils.NewControlledRetriever()

	s.prevBackend = newBackend
	newBackend = func(*config.Config, *logrus.Logger) backend {
		return backend{requester: s.requester, retriever: s.retriever}
	}
}

func (s *CommandTestSuite) TearDownTest() {
	newBackend = s.prevBackend
}

// ExecuteCommand runs a fresh root command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// NewSession builds a session on the fake backend.
func (s *CommandTestSuite) NewSession(cfg *config.Config) *session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	sess, err := newSession(cfg, s.helper.Logger)
	s.Require().NoError(err, "session MUST be created")
	return sess
}

func (s *CommandTestSuite) NextRequest() *testutils.PendingRequest {
	p := s.requester.Next(waitFor)
	s.Require().NotNil(p, "device request MUST be invoked")
	return p
}

func (s *CommandTestSuite) NextRetrieval() *testutils.PendingRetrieval {
	p := s.retriever.Next(waitFor)
	s.Require().NotNil(p, "service retrieval MUST be invoked")
	return p
}

func (s *CommandTestSuite) AwaitState(m *lifecycle.Machine, want lifecycle.State) {
	s.Require().Eventually(func() bool {
		return m.State() == want
	}, waitFor, tick, "machine MUST reach %s (stuck in %s)", want, m.State())
}
