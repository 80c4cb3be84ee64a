package stream_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/vsock/family"
	"github.com/sabouaram/vsock/sockops"
	"github.com/sabouaram/vsock/transport/memtransport"
	"github.com/sabouaram/vsock/vlog"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// harness wires one loopback Network with a server and client Family,
// mirroring how cmd/vsockctl assembles the stack, so every scenario below
// drives the real dispatcher/worker/sockops path rather than a mock.
type harness struct {
	net        *memtransport.Network
	server     *family.Family
	client     *family.Family
	serverAddr wire.Addr
	cancel     context.CancelFunc
}

func newHarness(serverCID, clientCID, port uint32) *harness {
	ctx, cancel := context.WithCancel(context.Background())
	net := memtransport.NewNetwork()
	serverNode := net.NewNode(serverCID)
	clientNode := net.NewNode(clientCID)

	serverFam := family.New(serverNode, vlog.New("test.server"), 64)
	clientFam := family.New(clientNode, vlog.New("test.client"), 64)
	serverFam.Start(ctx)
	clientFam.Start(ctx)

	return &harness{
		net:        net,
		server:     serverFam,
		client:     clientFam,
		serverAddr: wire.Addr{CID: serverCID, Port: port},
		cancel:     cancel,
	}
}

func (h *harness) stop() {
	h.server.Stop()
	h.client.Stop()
	h.cancel()
}

var _ = Describe("stream handshake scenarios", func() {
	var h *harness

	AfterEach(func() {
		if h != nil {
			h.stop()
		}
	})

	// S1 — Simple handshake.
	It("completes REQUEST/NEGOTIATE/OFFER/ATTACH and lets data flow both ways", func() {
		h = newHarness(2, 3, 1025)
		listener := h.server.Create(family.SockStream)
		Expect(h.server.Ops.Bind(listener, h.serverAddr)).To(Succeed())
		Expect(h.server.Ops.Listen(listener, 4)).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		type acceptResult struct {
			sock *vsocket.Socket
			err  error
		}
		accepted := make(chan acceptResult, 1)
		go func() {
			s, err := h.server.Ops.Accept(ctx, listener, false)
			accepted <- acceptResult{s, err}
		}()

		client := h.client.Create(family.SockStream)
		Expect(h.client.Ops.Connect(ctx, client, h.serverAddr, false)).To(Succeed())

		res := <-accepted
		Expect(res.err).NotTo(HaveOccurred())
		server := res.sock
		Expect(server.State()).To(Equal(vsocket.StateConnected))
		Expect(client.State()).To(Equal(vsocket.StateConnected))

		n, err := h.client.Ops.SendMsg(ctx, client, []byte("hello"), false)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(5))

		buf := make([]byte, 5)
		got, err := h.server.Ops.RecvMsg(ctx, server, buf, true, false, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf[:got])).To(Equal("hello"))

		_ = h.server.Release(server)
		_ = h.server.Release(listener)
		_ = h.client.Release(client)
	})

	// S2 — Backlog overflow: a ghost peer's REQUEST occupies the listener's
	// only backlog slot (and never follows up with OFFER, so it holds the
	// slot rather than completing and freeing it); a second, real client's
	// connect() is then refused outright.
	It("refuses a second pending connection once the backlog is full", func() {
		h = newHarness(2, 3, 1025)
		listener := h.server.Create(family.SockStream)
		Expect(h.server.Ops.Bind(listener, h.serverAddr)).To(Succeed())
		Expect(h.server.Ops.Listen(listener, 1)).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		ghostNode := h.net.NewNode(9)
		ghostAddr := wire.Addr{CID: 9, Port: 3000}
		Expect(ghostNode.Send(wire.Request(ghostAddr, h.serverAddr, 4096))).To(Succeed())

		Eventually(func() bool {
			cur, _ := h.server.PendingBacklog()
			return cur == 1
		}, time.Second).Should(BeTrue())

		second := h.client.Create(family.SockStream)
		err := h.client.Ops.Connect(ctx, second, h.serverAddr, false)
		Expect(err).To(HaveOccurred())

		_ = h.client.Release(second)
		_ = h.server.Release(listener)
	})

	// S3 — Pending reap: a ghost peer's REQUEST reaches NEGOTIATE and then
	// stalls (never sends OFFER); 1 second later the pending reaper drops
	// the child and the backlog returns to 0.
	It("reaps a pending child that never completes the handshake", func() {
		h = newHarness(2, 3, 1025)
		listener := h.server.Create(family.SockStream)
		Expect(h.server.Ops.Bind(listener, h.serverAddr)).To(Succeed())
		Expect(h.server.Ops.Listen(listener, 4)).To(Succeed())

		ghostNode := h.net.NewNode(9)
		ghostAddr := wire.Addr{CID: 9, Port: 3000}
		Expect(ghostNode.Send(wire.Request(ghostAddr, h.serverAddr, 4096))).To(Succeed())

		Eventually(func() bool {
			cur, _ := h.server.PendingBacklog()
			return cur == 1
		}, time.Second).Should(BeTrue())

		Eventually(func() bool {
			cur, _ := h.server.PendingBacklog()
			return cur == 0
		}, 3*time.Second, 50*time.Millisecond).Should(BeTrue())

		_ = h.server.Release(listener)
	})

	// S4 — Clean close: client shuts down WR, server drains remaining bytes
	// then reads EOF and, with its peer half-shut and its consume queue
	// empty, falls out of CONNECTED back into UNCONNECTED.
	It("runs a clean bilateral close", func() {
		h = newHarness(2, 3, 1025)
		listener := h.server.Create(family.SockStream)
		Expect(h.server.Ops.Bind(listener, h.serverAddr)).To(Succeed())
		Expect(h.server.Ops.Listen(listener, 4)).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		type acceptResult struct {
			sock *vsocket.Socket
			err  error
		}
		accepted := make(chan acceptResult, 1)
		go func() {
			s, err := h.server.Ops.Accept(ctx, listener, false)
			accepted <- acceptResult{s, err}
		}()

		client := h.client.Create(family.SockStream)
		Expect(h.client.Ops.Connect(ctx, client, h.serverAddr, false)).To(Succeed())
		res := <-accepted
		Expect(res.err).NotTo(HaveOccurred())
		server := res.sock

		n, err := h.client.Ops.SendMsg(ctx, client, []byte("bye"), false)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))
		Expect(h.client.Ops.Shutdown(client, sockops.ShutWR)).To(Succeed())

		buf := make([]byte, 3)
		got, err := h.server.Ops.RecvMsg(ctx, server, buf, true, false, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf[:got])).To(Equal("bye"))

		// A further recvmsg on the drained, peer-shut-WR side returns EOF
		// (0, nil) and drops the server side out of CONNECTED.
		got2, err := h.server.Ops.RecvMsg(ctx, server, buf, true, false, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(got2).To(Equal(0))
		Expect(server.State()).To(Equal(vsocket.StateUnconnected))

		_ = h.server.Release(server)
		_ = h.server.Release(listener)
		_ = h.client.Release(client)
	})

	// S5 — Abortive peer detach: the server side vanishes (simulated by
	// detaching its queue pair's handle); the client observes RDWR peer
	// shutdown and, with nothing left unread, drops straight to
	// DISCONNECTING.
	It("treats a peer detach event as an abortive close", func() {
		h = newHarness(2, 3, 1025)
		listener := h.server.Create(family.SockStream)
		Expect(h.server.Ops.Bind(listener, h.serverAddr)).To(Succeed())
		Expect(h.server.Ops.Listen(listener, 4)).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		type acceptResult struct {
			sock *vsocket.Socket
			err  error
		}
		accepted := make(chan acceptResult, 1)
		go func() {
			s, err := h.server.Ops.Accept(ctx, listener, false)
			accepted <- acceptResult{s, err}
		}()

		client := h.client.Create(family.SockStream)
		Expect(h.client.Ops.Connect(ctx, client, h.serverAddr, false)).To(Succeed())
		res := <-accepted
		Expect(res.err).NotTo(HaveOccurred())
		server := res.sock

		client.Lock()
		handle := client.QP.Handle()
		client.Unlock()

		h.net.DetachHandle(handle)

		Eventually(func() vsocket.State { return client.State() }, time.Second).Should(Equal(vsocket.StateDisconnecting))

		_ = h.server.Release(server)
		_ = h.server.Release(listener)
		_ = h.client.Release(client)
	})

	// S6 — VM resume: a RESUMED event treats every CONNECTED stream socket
	// as peer-detached, same as S5, applied module-wide.
	It("treats a RESUMED event as peer-detach for every connected socket", func() {
		h = newHarness(2, 3, 1025)
		listener := h.server.Create(family.SockStream)
		Expect(h.server.Ops.Bind(listener, h.serverAddr)).To(Succeed())
		Expect(h.server.Ops.Listen(listener, 4)).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		type acceptResult struct {
			sock *vsocket.Socket
			err  error
		}
		accepted := make(chan acceptResult, 1)
		go func() {
			s, err := h.server.Ops.Accept(ctx, listener, false)
			accepted <- acceptResult{s, err}
		}()

		client := h.client.Create(family.SockStream)
		Expect(h.client.Ops.Connect(ctx, client, h.serverAddr, false)).To(Succeed())
		res := <-accepted
		Expect(res.err).NotTo(HaveOccurred())
		server := res.sock

		h.net.Resume()

		Eventually(func() vsocket.State { return client.State() }, time.Second).Should(Equal(vsocket.StateDisconnecting))
		Eventually(func() vsocket.State { return server.State() }, time.Second).Should(Equal(vsocket.StateDisconnecting))

		_ = h.server.Release(server)
		_ = h.server.Release(listener)
		_ = h.client.Release(client)
	})
})
