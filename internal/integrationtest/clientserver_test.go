package integrationtest_test

import (
	"testing"

	"github.com/dmksnnk/hive/internal/integrationtest"
	"github.com/dmksnnk/hive/internal/status"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTwoPeers(t *testing.T) {
	relayAddr := integrationtest.StartRelay(t)

	logA := integrationtest.NewGameLog(t)
	a := integrationtest.StartPeer(t, relayAddr, logA)
	a.Expect(t, status.SetToNoHost, "")

	logA.Noise(t)
	logA.StartHosting(t, 25565)
	a.Expect(t, status.SetToOneHost, "127.0.0.1:25565")

	logB := integrationtest.NewGameLog(t)
	b := integrationtest.StartPeer(t, relayAddr, logB)
	b.Expect(t, status.SetToOneHost, "127.0.0.1:25565")
	a.ExpectNothing(t)

	logB.StartHosting(t, 25566)
	a.Expect(t, status.SetToManyHosts, "")
	b.Expect(t, status.SetToManyHosts, "")

	if err := a.Stop(); err != nil {
		t.Fatalf("stop peer A: %s", err)
	}
	b.Expect(t, status.SetToOneHost, "127.0.0.1:25566")

	logB.Restart(t)
	b.Expect(t, status.SetToNoHost, "")
}

func TestHostingAgain(t *testing.T) {
	relayAddr := integrationtest.StartRelay(t)

	log := integrationtest.NewGameLog(t)
	p := integrationtest.StartPeer(t, relayAddr, log)
	p.Expect(t, status.SetToNoHost, "")

	log.StartHosting(t, 40000)
	p.Expect(t, status.SetToOneHost, "127.0.0.1:40000")

	log.StopHosting(t)
	p.Expect(t, status.SetToNoHost, "")

	log.StartHosting(t, 40001)
	p.Expect(t, status.SetToOneHost, "127.0.0.1:40001")

	// a new game session already hosting on the same port
	log.RestartHosting(t, 40001)
	p.ExpectNothing(t)

	log.StopHosting(t)
	p.Expect(t, status.SetToNoHost, "")
}
