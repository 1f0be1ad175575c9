package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/srg/blelink/internal/testutils"
	"github.com/srg/blelink/pkg/lifecycle"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type MachineTestSuite struct {
	suite.Suite
	helper    *testutils.TestHelper
	requester *testutils.ControlledRequester
	retriever *testutils.ControlledRetriever
	conn      *lifecycle.Connection
	machine   *lifecycle.Machine
	cancel    context.CancelFunc
}

func (suite *MachineTestSuite) SetupTest() {
	suite.helper = testutils.NewTestHelper(suite.T())
	suite.requester = testutils.NewControlledRequester()
	suite.retriever = testutils.NewControlledRetriever()
	suite.conn = lifecycle.NewConnection(suite.requester, suite.retriever, &lifecycle.ConnectionOptions{Name: "machine-test"}, suite.helper.Logger)
	suite.machine = lifecycle.NewMachine(lifecycle.NewContext(suite.conn), nil, suite.helper.Logger)

	var ctx context.Context
	ctx, suite.cancel = context.WithCancel(context.Background())
	suite.Require().NoError(suite.machine.Start(ctx), "machine MUST start")
}

func (suite *MachineTestSuite) TearDownTest() {
	suite.machine.Stop()
	suite.cancel()
}

func (suite *MachineTestSuite) send(t lifecycle.Trigger) {
	suite.Require().NoError(suite.machine.Send(context.Background(), t), "sending %s MUST succeed", t)
}

func (suite *MachineTestSuite) awaitState(s lifecycle.State) {
	suite.Require().Eventually(func() bool {
		return suite.machine.State() == s
	}, waitFor, tick, "machine MUST reach %s (stuck in %s)", s, suite.machine.State())
}

func (suite *MachineTestSuite) nextRequest() *testutils.PendingRequest {
	p := suite.requester.Next(waitFor)
	suite.Require().NotNil(p, "device request MUST be invoked")
	return p
}

func (suite *MachineTestSuite) nextRetrieval() *testutils.PendingRetrieval {
	p := suite.retriever.Next(waitFor)
	suite.Require().NotNil(p, "service retrieval MUST be invoked")
	return p
}

func (suite *MachineTestSuite) assertNoReasons() {
	ctx := suite.machine.Context()
	suite.Assert().Equal(lifecycle.Reason{}, ctx.RejectedReason, "rejected reason MUST be {NONE, \"\"}")
	suite.Assert().Equal(lifecycle.Reason{}, ctx.DisconnectedReason, "disconnected reason MUST be {NONE, \"\"}")
}

// connect drives the machine from Init to Connected.
func (suite *MachineTestSuite) connect() (*testutils.FakeDevice, *testutils.FakeServices) {
	dev := testutils.NewFakeDevice("D1", "Sensor")
	svc := testutils.NewFakeServices("180f")

	suite.send(lifecycle.TriggerRequest)
	suite.nextRequest().Resolve(dev)

	retrieval := suite.nextRetrieval()
	suite.Require().Same(dev, retrieval.Device, "services MUST be retrieved for the resolved device")
	retrieval.Resolve(svc)

	suite.awaitState(lifecycle.StateConnected)
	return dev, svc
}

func (suite *MachineTestSuite) TestRequestReachesConnected() {
	// GOAL: Verify a successful request and retrieval end in Connected without reasons
	//
	// TEST SCENARIO: REQUEST → device resolves → services resolve → Connected with both reasons NONE

	dev, svc := suite.connect()

	suite.assertNoReasons()
	suite.Assert().Same(dev, suite.conn.Device(), "resolved device MUST be held")
	suite.Assert().Same(svc, suite.conn.Services(), "retrieved services MUST be held")
	suite.Assert().Equal(1, dev.ListenerCount(), "held device MUST carry the disconnect listener")
}

func (suite *MachineTestSuite) TestRequestFailure() {
	// GOAL: Verify a failing request rejects with the failure message and RESET clears it
	//
	// TEST SCENARIO: REQUEST → request fails → Rejected{ERROR, msg} → RESET → Init with NONE

	suite.send(lifecycle.TriggerRequest)
	suite.nextRequest().Fail(errors.New("User cancelled the requestDevice() chooser."))
	suite.awaitState(lifecycle.StateRejected)

	rejected := suite.machine.Context().RejectedReason
	suite.Assert().Equal(lifecycle.ReasonError, rejected.Kind, "rejected reason MUST be ERROR")
	suite.Assert().Equal("User cancelled the requestDevice() chooser.", rejected.Message, "failure message MUST be preserved")

	suite.send(lifecycle.TriggerReset)
	suite.awaitState(lifecycle.StateInit)

	suite.assertNoReasons()
}

func (suite *MachineTestSuite) TestContextSnapshotIsCopy() {
	// GOAL: Verify Context returns a copy the loop never writes to afterwards
	//
	// TEST SCENARIO: Rejected snapshot taken → RESET clears live reasons → earlier snapshot keeps ERROR

	suite.send(lifecycle.TriggerRequest)
	suite.nextRequest().Fail(errors.New("denied"))
	suite.awaitState(lifecycle.StateRejected)
	snapshot := suite.machine.Context()

	suite.send(lifecycle.TriggerReset)
	suite.awaitState(lifecycle.StateInit)

	suite.Assert().Equal(lifecycle.ReasonError, snapshot.RejectedReason.Kind, "snapshot MUST NOT change after later transitions")
	suite.Assert().Equal("denied", snapshot.RejectedReason.Message)
	suite.Assert().Same(suite.conn, snapshot.Conn, "snapshot MUST share the connection")
	suite.assertNoReasons()
}

func (suite *MachineTestSuite) TestLostWithFullQueue() {
	// GOAL: Verify a link loss reported while the trigger queue is full neither blocks the backend nor gets lost
	//
	// TEST SCENARIO: loop held in a device observer, queue filled → device drops → callback returns → release → Disconnected{DELAYED}

	requester := testutils.NewControlledRequester()
	retriever := testutils.NewControlledRetriever()
	conn := lifecycle.NewConnection(requester, retriever, nil, suite.helper.Logger)
	machine := lifecycle.NewMachine(lifecycle.NewContext(conn), &lifecycle.MachineOptions{EventBuffer: 1}, suite.helper.Logger)
	suite.Require().NoError(machine.Start(context.Background()))
	defer machine.Stop()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	conn.RegisterDeviceObserver(lifecycle.NewObserver(func(ev lifecycle.BoundEvent[lifecycle.Device]) {
		if ev.Binding {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	}))

	suite.Require().NoError(machine.Send(context.Background(), lifecycle.TriggerRequest))
	dev := testutils.NewFakeDevice("D1", "Sensor")
	p := requester.Next(waitFor)
	suite.Require().NotNil(p, "device request MUST be invoked")
	p.Resolve(dev)
	<-entered

	// Ignored in AwaitingServices and Disconnected alike, it only occupies the queue.
	suite.Require().NoError(machine.Send(context.Background(), lifecycle.TriggerDisconnect))

	dropped := make(chan struct{})
	go func() {
		dev.DropConnection()
		close(dropped)
	}()
	select {
	case <-dropped:
	case <-time.After(waitFor):
		suite.FailNow("disconnect callback MUST NOT block on a full queue")
	}

	close(release)
	suite.Require().Eventually(func() bool {
		return machine.State() == lifecycle.StateDisconnected
	}, waitFor, tick, "LOST MUST still be processed, stuck in %s", machine.State())
	suite.Assert().Equal(lifecycle.ReasonDelayed, machine.Context().DisconnectedReason.Kind, "reason MUST be DELAYED")
	suite.Assert().Equal(uint64(1), machine.Stats().Ignored, "queued DISCONNECT MUST be ignored")
}

func (suite *MachineTestSuite) TestRetryFromRejected() {
	// GOAL: Verify a retry from Rejected clears the old reason and can succeed
	//
	// TEST SCENARIO: Rejected → REQUEST → RequestingDevice with NONE → resolve → Connected

	suite.send(lifecycle.TriggerRequest)
	suite.nextRequest().Fail(errors.New("denied"))
	suite.awaitState(lifecycle.StateRejected)

	suite.send(lifecycle.TriggerRequest)
	pending := suite.nextRequest()
	suite.Assert().Equal(lifecycle.StateRequestingDevice, suite.machine.State(), "retry MUST re-enter RequestingDevice")
	suite.assertNoReasons()

	dev := testutils.NewFakeDevice("D1", "Sensor")
	pending.Resolve(dev)
	suite.nextRetrieval().Resolve(testutils.NewFakeServices())
	suite.awaitState(lifecycle.StateConnected)
	suite.assertNoReasons()
}

func (suite *MachineTestSuite) TestLostWhileAwaitingServices() {
	// GOAL: Verify LOST during retrieval disconnects as DELAYED and the late completion is dropped
	//
	// TEST SCENARIO: AwaitingServices → device drops → Disconnected{DELAYED} → retrieval resolves late → nothing changes

	dev := testutils.NewFakeDevice("D1", "Sensor")
	suite.send(lifecycle.TriggerRequest)
	suite.nextRequest().Resolve(dev)
	retrieval := suite.nextRetrieval()
	suite.Require().Equal(lifecycle.StateAwaitingServices, suite.machine.State(), "retrieval MUST run in AwaitingServices")

	dev.DropConnection()
	suite.awaitState(lifecycle.StateDisconnected)

	disconnected := suite.machine.Context().DisconnectedReason
	suite.Assert().Equal(lifecycle.ReasonDelayed, disconnected.Kind, "disconnected reason MUST be DELAYED")
	suite.Assert().Equal(lifecycle.MessageDelayed, disconnected.Message, "DELAYED message MUST match")

	retrieval.Resolve(testutils.NewFakeServices("180f"))
	suite.Require().Eventually(func() bool {
		return suite.machine.Stats().Stale == 1
	}, waitFor, tick, "late completion MUST be counted as stale")

	suite.Assert().Equal(lifecycle.StateDisconnected, suite.machine.State(), "late completion MUST not change state")
	suite.Assert().Equal(disconnected, suite.machine.Context().DisconnectedReason, "late completion MUST not overwrite the reason")
	suite.Assert().Nil(suite.conn.Services(), "late completion MUST not bind services")
}

func (suite *MachineTestSuite) TestLateFailureAfterLost() {
	// GOAL: Verify a late failing retrieval does not overwrite the DELAYED reason
	//
	// TEST SCENARIO: AwaitingServices → LOST → retrieval fails late → reason stays DELAYED

	dev := testutils.NewFakeDevice("D1", "Sensor")
	suite.send(lifecycle.TriggerRequest)
	suite.nextRequest().Resolve(dev)
	retrieval := suite.nextRetrieval()

	dev.DropConnection()
	suite.awaitState(lifecycle.StateDisconnected)

	retrieval.Fail(errors.New("GATT operation failed"))
	suite.Require().Eventually(func() bool {
		return suite.machine.Stats().Stale == 1
	}, waitFor, tick, "late failure MUST be counted as stale")

	suite.Assert().Equal(lifecycle.ReasonDelayed, suite.machine.Context().DisconnectedReason.Kind, "reason MUST stay DELAYED")
}

func (suite *MachineTestSuite) TestDisconnectThenLost() {
	// GOAL: Verify DISCONNECT disconnects the device once and the following LOST is CENTRAL
	//
	// TEST SCENARIO: Connected → DISCONNECT → Disconnecting with one Disconnect call → LOST → Disconnected{CENTRAL}

	dev, _ := suite.connect()

	suite.send(lifecycle.TriggerDisconnect)
	suite.awaitState(lifecycle.StateDisconnecting)
	suite.Require().Eventually(func() bool {
		return dev.DisconnectCalls() == 1
	}, waitFor, tick, "entering Disconnecting MUST disconnect the device")
	suite.Assert().Nil(suite.conn.Services(), "leaving Connected MUST reset services")

	dev.DropConnection()
	suite.awaitState(lifecycle.StateDisconnected)

	disconnected := suite.machine.Context().DisconnectedReason
	suite.Assert().Equal(lifecycle.ReasonCentral, disconnected.Kind, "disconnected reason MUST be CENTRAL")
	suite.Assert().Equal(lifecycle.MessageCentral, disconnected.Message, "CENTRAL message MUST match")
	suite.Assert().Equal(1, dev.DisconnectCalls(), "device MUST be disconnected exactly once")
}

func (suite *MachineTestSuite) TestDisconnectReportedSynchronously() {
	// GOAL: Verify a backend that reports the drop from inside Disconnect still ends in CENTRAL
	//
	// TEST SCENARIO: Connected → DISCONNECT → Disconnect fires the listener on the loop → Disconnected{CENTRAL}

	dev, _ := suite.connect()
	dev.DropLinkOnDisconnect()

	suite.send(lifecycle.TriggerDisconnect)
	suite.awaitState(lifecycle.StateDisconnected)

	suite.Assert().Equal(lifecycle.ReasonCentral, suite.machine.Context().DisconnectedReason.Kind, "disconnected reason MUST be CENTRAL")
}

func (suite *MachineTestSuite) TestLostWhileConnected() {
	// GOAL: Verify LOST while connected is PERIPHERAL and clears services
	//
	// TEST SCENARIO: Connected → device drops → Disconnected{PERIPHERAL}; services observer sees an unbind

	dev, svc := suite.connect()
	services := testutils.NewBoundRecorder[lifecycle.Services]()
	suite.conn.RegisterServicesObserver(services.Observer())

	dev.DropConnection()
	suite.awaitState(lifecycle.StateDisconnected)

	disconnected := suite.machine.Context().DisconnectedReason
	suite.Assert().Equal(lifecycle.ReasonPeripheral, disconnected.Kind, "disconnected reason MUST be PERIPHERAL")
	suite.Assert().Equal(lifecycle.MessagePeripheral, disconnected.Message, "PERIPHERAL message MUST match")
	suite.Assert().Nil(suite.conn.Services(), "services MUST be cleared on exit from Connected")
	suite.Assert().Same(dev, suite.conn.Device(), "device MUST remain held")

	events := services.Events()
	suite.Require().Len(events, 2, "services observer MUST see bind then unbind")
	suite.Assert().Same(svc, events[1].Target, "unbind MUST target the retrieved services")
	suite.Assert().False(events[1].Binding, "last event MUST be an unbind")
}

func (suite *MachineTestSuite) TestResetFromDisconnected() {
	// GOAL: Verify RESET from Disconnected clears reasons and the device
	//
	// TEST SCENARIO: Disconnected{PERIPHERAL} → RESET → Init, reasons NONE, device observer sees unbind of the old device

	dev, _ := suite.connect()
	devices := testutils.NewBoundRecorder[lifecycle.Device]()
	suite.conn.RegisterDeviceObserver(devices.Observer())

	dev.DropConnection()
	suite.awaitState(lifecycle.StateDisconnected)

	suite.send(lifecycle.TriggerReset)
	suite.awaitState(lifecycle.StateInit)

	suite.assertNoReasons()
	suite.Assert().Nil(suite.conn.Device(), "device reference MUST be cleared")
	suite.Assert().Equal(0, dev.ListenerCount(), "old device MUST lose the disconnect listener")

	events := devices.Events()
	suite.Require().Len(events, 2, "device observer MUST see bind then unbind")
	suite.Assert().Same(dev, events[1].Target, "unbind MUST target the old device")
	suite.Assert().False(events[1].Binding, "last event MUST be an unbind")
}

func (suite *MachineTestSuite) TestReconnect() {
	// GOAL: Verify CONNECT from Disconnected retrieves services again for the held device
	//
	// TEST SCENARIO: retrieval fails → Disconnected{ERROR} → CONNECT → reasons cleared → retrieval resolves → Connected

	dev := testutils.NewFakeDevice("D1", "Sensor")
	suite.send(lifecycle.TriggerRequest)
	suite.nextRequest().Resolve(dev)
	suite.nextRetrieval().Fail(errors.New("GATT Server is disconnected."))
	suite.awaitState(lifecycle.StateDisconnected)

	disconnected := suite.machine.Context().DisconnectedReason
	suite.Assert().Equal(lifecycle.ReasonError, disconnected.Kind, "retrieval failure MUST be ERROR")
	suite.Assert().Equal("GATT Server is disconnected.", disconnected.Message, "failure message MUST be preserved")

	suite.send(lifecycle.TriggerConnect)
	retrieval := suite.nextRetrieval()
	suite.Assert().Same(dev, retrieval.Device, "reconnect MUST reuse the held device")
	suite.assertNoReasons()

	retrieval.Resolve(testutils.NewFakeServices("180d"))
	suite.awaitState(lifecycle.StateConnected)
	suite.assertNoReasons()
	suite.Assert().Equal(1, suite.requester.Calls(), "reconnect MUST not request a new device")
}

func (suite *MachineTestSuite) TestSubRequest() {
	// GOAL: Verify REQUEST from Disconnected selects a new device
	//
	// TEST SCENARIO: Disconnected → REQUEST → SubRequestingDevice → resolves D2 → AwaitingServices for D2 → Connected

	d1, _ := suite.connect()
	d1.DropConnection()
	suite.awaitState(lifecycle.StateDisconnected)

	suite.send(lifecycle.TriggerRequest)
	pending := suite.nextRequest()
	suite.Assert().Equal(lifecycle.StateSubRequestingDevice, suite.machine.State(), "REQUEST MUST enter SubRequestingDevice")
	suite.assertNoReasons()

	d2 := testutils.NewFakeDevice("D2", "Other")
	pending.Resolve(d2)
	retrieval := suite.nextRetrieval()
	suite.Assert().Same(d2, retrieval.Device, "services MUST be retrieved for the new device")
	retrieval.Resolve(testutils.NewFakeServices())

	suite.awaitState(lifecycle.StateConnected)
	suite.Assert().Same(d2, suite.conn.Device(), "new device MUST be held")
	suite.Assert().Equal(0, d1.ListenerCount(), "old device MUST lose the disconnect listener")
}

func (suite *MachineTestSuite) TestSubRequestFailure() {
	// GOAL: Verify a failed re-request returns to Disconnected and records a rejected reason
	//
	// TEST SCENARIO: Disconnected{PERIPHERAL} → REQUEST → fails → Disconnected with rejected ERROR and disconnected NONE

	d1, _ := suite.connect()
	d1.DropConnection()
	suite.awaitState(lifecycle.StateDisconnected)

	suite.send(lifecycle.TriggerRequest)
	suite.nextRequest().Fail(errors.New("chooser closed"))
	suite.Require().Eventually(func() bool {
		ctx := suite.machine.Context()
		return suite.machine.State() == lifecycle.StateDisconnected && !ctx.RejectedReason.IsNone()
	}, waitFor, tick, "failed re-request MUST return to Disconnected")

	ctx := suite.machine.Context()
	suite.Assert().Equal(lifecycle.Reason{Kind: lifecycle.ReasonError, Message: "chooser closed"}, ctx.RejectedReason, "failure MUST be stored as the rejected reason")
	suite.Assert().True(ctx.DisconnectedReason.IsNone(), "disconnected reason MUST have been cleared on leaving Disconnected")
	suite.Assert().Same(d1, suite.conn.Device(), "failed re-request MUST keep the held device")
}

func (suite *MachineTestSuite) TestNoSelection() {
	// GOAL: Verify a request resolving without a device ends disconnected with an error
	//
	// TEST SCENARIO: REQUEST → resolves with no device → AwaitingServices → retrieval reports no device → Disconnected{ERROR}

	suite.send(lifecycle.TriggerRequest)
	suite.nextRequest().Resolve(nil)
	suite.awaitState(lifecycle.StateDisconnected)

	disconnected := suite.machine.Context().DisconnectedReason
	suite.Assert().Equal(lifecycle.ReasonError, disconnected.Kind, "missing device MUST be an ERROR")
	suite.Assert().Equal(lifecycle.ErrNoDevice.Error(), disconnected.Message, "message MUST name the missing device")
	suite.Assert().Equal(0, suite.retriever.Calls(), "retriever MUST not be called without a device")
}

func (suite *MachineTestSuite) TestIgnoredTriggers() {
	// GOAL: Verify triggers without a transition are ignored
	//
	// TEST SCENARIO: Init → CONNECT, DISCONNECT, RESET → still Init, three ignored

	suite.send(lifecycle.TriggerConnect)
	suite.send(lifecycle.TriggerDisconnect)
	suite.send(lifecycle.TriggerReset)

	suite.Require().Eventually(func() bool {
		return suite.machine.Stats().Ignored == 3
	}, waitFor, tick, "unmatched triggers MUST be counted as ignored")
	suite.Assert().Equal(lifecycle.StateInit, suite.machine.State(), "ignored triggers MUST not change state")
	suite.Assert().Equal(uint64(0), suite.machine.Stats().Processed, "no transition MUST be processed")
}

func (suite *MachineTestSuite) TestSendContract() {
	// GOAL: Verify Send rejects internal triggers and a stopped machine
	//
	// TEST SCENARIO: send LOST → ErrInternalTrigger; Start again → ErrAlreadyStarted; Stop → Send fails with ErrMachineStopped

	for _, t := range []lifecycle.Trigger{lifecycle.TriggerLost, lifecycle.TriggerDeviceResolved, lifecycle.TriggerServicesFailed} {
		err := suite.machine.Send(context.Background(), t)
		suite.Assert().ErrorIs(err, lifecycle.ErrInternalTrigger, "%s MUST be rejected", t)
	}

	suite.Assert().ErrorIs(suite.machine.Start(context.Background()), lifecycle.ErrAlreadyStarted, "second Start MUST fail")

	suite.machine.Stop()
	suite.Assert().ErrorIs(suite.machine.Send(context.Background(), lifecycle.TriggerRequest), lifecycle.ErrMachineStopped, "Send after Stop MUST fail")

	select {
	case <-suite.machine.Done():
	default:
		suite.Fail("Done MUST be closed after Stop")
	}
}

func (suite *MachineTestSuite) TestStopDetachesCallback() {
	// GOAL: Verify Stop removes the LOST callback and closes subscriptions
	//
	// TEST SCENARIO: Connected with a subscriber → Stop → feed closed → device drops → state unchanged

	feed, _ := suite.machine.Subscribe()
	dev, _ := suite.connect()

	suite.machine.Stop()

	suite.Require().Eventually(func() bool {
		select {
		case _, ok := <-feed:
			return !ok
		default:
			return false
		}
	}, waitFor, tick, "feed MUST be closed by Stop")

	suite.NotPanics(dev.DropConnection, "drop after Stop MUST be harmless")
	suite.Assert().Equal(lifecycle.StateConnected, suite.machine.State(), "state MUST not change after Stop")

	late, _ := suite.machine.Subscribe()
	_, ok := <-late
	suite.Assert().False(ok, "subscribing after Stop MUST return a closed feed")
}

func (suite *MachineTestSuite) TestFullCycle() {
	// GOAL: Verify the complete connect / disconnect / reset cycle and the transitions it reports
	//
	// TEST SCENARIO: REQUEST → D1 → AwaitingServices → S1 → Connected → DISCONNECT → Disconnecting → LOST → Disconnected{CENTRAL} → RESET → Init

	feed, unsubscribe := suite.machine.Subscribe()
	defer unsubscribe()

	d1 := testutils.NewFakeDevice("D1", "Sensor")
	s1 := testutils.NewFakeServices("180f")

	suite.send(lifecycle.TriggerRequest)
	suite.nextRequest().Resolve(d1)
	suite.nextRetrieval().Resolve(s1)
	suite.awaitState(lifecycle.StateConnected)

	suite.send(lifecycle.TriggerDisconnect)
	suite.awaitState(lifecycle.StateDisconnecting)
	suite.Require().Eventually(func() bool { return d1.DisconnectCalls() == 1 }, waitFor, tick, "device MUST be disconnected")

	d1.DropConnection()
	suite.awaitState(lifecycle.StateDisconnected)
	suite.Assert().Equal(lifecycle.ReasonCentral, suite.machine.Context().DisconnectedReason.Kind, "MUST be Disconnected{CENTRAL}")

	suite.send(lifecycle.TriggerReset)
	suite.awaitState(lifecycle.StateInit)
	suite.assertNoReasons()

	expected := []struct {
		from, to lifecycle.State
		trigger  lifecycle.Trigger
	}{
		{lifecycle.StateInit, lifecycle.StateRequestingDevice, lifecycle.TriggerRequest},
		{lifecycle.StateRequestingDevice, lifecycle.StateAwaitingServices, lifecycle.TriggerDeviceResolved},
		{lifecycle.StateAwaitingServices, lifecycle.StateConnected, lifecycle.TriggerServicesResolved},
		{lifecycle.StateConnected, lifecycle.StateDisconnecting, lifecycle.TriggerDisconnect},
		{lifecycle.StateDisconnecting, lifecycle.StateDisconnected, lifecycle.TriggerLost},
		{lifecycle.StateDisconnected, lifecycle.StateInit, lifecycle.TriggerReset},
	}
	for i, want := range expected {
		select {
		case got := <-feed:
			suite.Assert().Equal(want.from, got.From, "transition %d source MUST match", i)
			suite.Assert().Equal(want.to, got.To, "transition %d target MUST match", i)
			suite.Assert().Equal(want.trigger, got.Trigger, "transition %d trigger MUST match", i)
		case <-time.After(waitFor):
			suite.FailNow("missing transition", "transition %d MUST be published", i)
		}
	}

	journal := suite.machine.Journal().Drain()
	suite.Require().Len(journal, len(expected), "journal MUST hold every transition")
	suite.Assert().Equal(lifecycle.ReasonCentral, journal[4].DisconnectedReason.Kind, "journal MUST record the CENTRAL reason")
	suite.Assert().Empty(suite.machine.Journal().Drain(), "Drain MUST empty the journal")
	suite.Assert().Equal(uint64(len(expected)), suite.machine.Stats().Processed, "every transition MUST be counted")
}

func TestMachineTestSuite(t *testing.T) {
	suite.Run(t, new(MachineTestSuite))
}
