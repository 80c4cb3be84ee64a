package sockops_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/registry"
	"github.com/sabouaram/vsock/sockops"
	"github.com/sabouaram/vsock/stream"
	"github.com/sabouaram/vsock/transport/memtransport"
	"github.com/sabouaram/vsock/vlog"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// newOps wires one Ops/Worker/Dispatcher against a fresh node on net,
// mirroring family.New but exposing the pieces directly so specs can
// exercise sockops.Ops without going through the family package.
func newOps(ctx context.Context, net *memtransport.Network, cid uint32, name string) *sockops.Ops {
	node := net.NewNode(cid)
	reg := registry.New()
	log := vlog.New(name)
	w := stream.NewWorker(reg, node, log, 64)
	_ = stream.NewDispatcher(reg, w, node, log)
	w.Start(ctx)

	return &sockops.Ops{
		Registry:  reg,
		Worker:    w,
		Transport: node,
		Log:       log,
	}
}

var _ = Describe("sockops", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		net    *memtransport.Network
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		net = memtransport.NewNetwork()
	})

	AfterEach(func() {
		cancel()
	})

	Describe("Bind", func() {
		It("rejects a second bind on an already-bound socket", func() {
			ops := newOps(ctx, net, 2, "bind")
			s := ops.New(vsocket.TypeStream, false)
			Expect(ops.Bind(s, wire.Addr{CID: wire.CIDAny, Port: 1025})).To(Succeed())
			err := ops.Bind(s, wire.Addr{CID: wire.CIDAny, Port: 1026})
			Expect(err).To(MatchError(errcode.EInval.Unix()))
		})

		It("rejects a reserved port without Trusted", func() {
			ops := newOps(ctx, net, 2, "bind")
			s := ops.New(vsocket.TypeStream, false)
			err := ops.Bind(s, wire.Addr{CID: wire.CIDAny, Port: 1})
			Expect(err).To(MatchError(errcode.EAccess.Unix()))
		})

		It("allows a reserved port for a Trusted socket", func() {
			ops := newOps(ctx, net, 2, "bind")
			s := ops.New(vsocket.TypeStream, true)
			Expect(ops.Bind(s, wire.Addr{CID: wire.CIDAny, Port: 1})).To(Succeed())
		})

		It("rejects a non-local cid", func() {
			ops := newOps(ctx, net, 2, "bind")
			s := ops.New(vsocket.TypeStream, false)
			err := ops.Bind(s, wire.Addr{CID: 99, Port: 1025})
			Expect(err).To(MatchError(errcode.EAddrNotAvail.Unix()))
		})

		It("assigns a free dynamic port on PortAny", func() {
			ops := newOps(ctx, net, 2, "bind")
			s := ops.New(vsocket.TypeStream, false)
			Expect(ops.Bind(s, wire.Addr{CID: wire.CIDAny, Port: wire.PortAny})).To(Succeed())
			Expect(s.Local.Port).To(BeNumerically(">", wire.LastReservedPort))
		})
	})

	Describe("Listen", func() {
		It("rejects listen on an unbound socket", func() {
			ops := newOps(ctx, net, 2, "listen")
			s := ops.New(vsocket.TypeStream, false)
			err := ops.Listen(s, 4)
			Expect(err).To(MatchError(errcode.EInval.Unix()))
		})

		It("rejects listen on a DGRAM socket", func() {
			ops := newOps(ctx, net, 2, "listen")
			s := ops.New(vsocket.TypeDgram, false)
			err := ops.Listen(s, 4)
			Expect(err).To(MatchError(errcode.EOpNotSupp.Unix()))
		})

		It("transitions a bound socket to LISTEN", func() {
			ops := newOps(ctx, net, 2, "listen")
			s := ops.New(vsocket.TypeStream, false)
			Expect(ops.Bind(s, wire.Addr{CID: wire.CIDAny, Port: 1025})).To(Succeed())
			Expect(ops.Listen(s, 4)).To(Succeed())
			Expect(s.State()).To(Equal(vsocket.StateListen))
		})
	})

	Describe("Connect", func() {
		It("rejects a well-known destination", func() {
			ops := newOps(ctx, net, 2, "connect")
			s := ops.New(vsocket.TypeStream, false)
			err := ops.Connect(ctx, s, wire.Addr{CID: wire.HypervisorCID, Port: 1}, false)
			Expect(err).To(MatchError(errcode.ENetUnreach.Unix()))
		})

		It("rejects connecting an already-LISTEN socket", func() {
			ops := newOps(ctx, net, 2, "connect")
			s := ops.New(vsocket.TypeStream, false)
			Expect(ops.Bind(s, wire.Addr{CID: wire.CIDAny, Port: 1025})).To(Succeed())
			Expect(ops.Listen(s, 4)).To(Succeed())
			err := ops.Connect(ctx, s, wire.Addr{CID: 3, Port: 1}, false)
			Expect(err).To(MatchError(errcode.EInval.Unix()))
		})

		It("refuses a connect to an address nothing is listening on", func() {
			ops := newOps(ctx, net, 2, "connect-client")
			s := ops.New(vsocket.TypeStream, false)
			err := ops.Connect(ctx, s, wire.Addr{CID: 5, Port: 1025}, false)
			Expect(err).To(HaveOccurred())
		})

		It("returns EINPROGRESS immediately for a non-blocking connect", func() {
			serverOps := newOps(ctx, net, 2, "connect-server")
			listener := serverOps.New(vsocket.TypeStream, false)
			addr := wire.Addr{CID: 2, Port: 1025}
			Expect(serverOps.Bind(listener, addr)).To(Succeed())
			Expect(serverOps.Listen(listener, 4)).To(Succeed())

			clientOps := newOps(ctx, net, 3, "connect-client")
			client := clientOps.New(vsocket.TypeStream, false)
			err := clientOps.Connect(ctx, client, addr, true)
			Expect(err).To(MatchError(errcode.EInProgress.Unix()))

			Eventually(func() vsocket.State { return client.State() }, time.Second).Should(Equal(vsocket.StateConnected))
		})
	})

	Describe("Shutdown", func() {
		It("rejects an invalid how value", func() {
			ops := newOps(ctx, net, 2, "shutdown")
			s := ops.New(vsocket.TypeStream, false)
			err := ops.Shutdown(s, sockops.How(99))
			Expect(err).To(MatchError(errcode.EInval.Unix()))
		})

		It("records the local shutdown mask even on an unconnected socket", func() {
			ops := newOps(ctx, net, 2, "shutdown")
			s := ops.New(vsocket.TypeStream, false)
			Expect(ops.Shutdown(s, sockops.ShutWR)).To(Succeed())
			Expect(s.LocalShutdown & wire.ShutWR).NotTo(BeZero())
		})
	})

	Describe("GetName", func() {
		It("reports the zero address for a never-bound socket", func() {
			ops := newOps(ctx, net, 2, "getname")
			s := ops.New(vsocket.TypeStream, false)
			addr, err := ops.GetName(s, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(Equal(wire.Addr{}))
		})

		It("rejects a peer query on an unconnected socket", func() {
			ops := newOps(ctx, net, 2, "getname")
			s := ops.New(vsocket.TypeStream, false)
			_, err := ops.GetName(s, true)
			Expect(err).To(MatchError(errcode.ENotConn.Unix()))
		})
	})

	Describe("Poll", func() {
		It("reports POLLOUT for an unconnected DGRAM socket", func() {
			ops := newOps(ctx, net, 2, "poll")
			s := ops.New(vsocket.TypeDgram, false)
			Expect(ops.Poll(s) & sockops.PollOut).NotTo(BeZero())
		})

		It("reports no readiness bits for a fresh unconnected socket", func() {
			ops := newOps(ctx, net, 2, "poll")
			s := ops.New(vsocket.TypeStream, false)
			Expect(ops.Poll(s)).To(BeZero())
		})

		It("reports POLLIN once a listener has a pending accept", func() {
			serverOps := newOps(ctx, net, 2, "poll-server")
			listener := serverOps.New(vsocket.TypeStream, false)
			addr := wire.Addr{CID: 2, Port: 1025}
			Expect(serverOps.Bind(listener, addr)).To(Succeed())
			Expect(serverOps.Listen(listener, 4)).To(Succeed())

			clientOps := newOps(ctx, net, 3, "poll-client")
			client := clientOps.New(vsocket.TypeStream, false)
			go func() { _ = clientOps.Connect(ctx, client, addr, false) }()

			Eventually(func() sockops.PollMask { return serverOps.Poll(listener) }, time.Second).Should(
				Equal(sockops.PollIn))

			_ = clientOps.Release(client)
			_ = serverOps.Release(listener)
		})
	})

	Describe("SetOpt/GetOpt", func() {
		It("round-trips the buffer size bounds", func() {
			ops := newOps(ctx, net, 2, "sockopt")
			s := ops.New(vsocket.TypeStream, false)
			Expect(ops.SetOpt(s, sockops.OptBufferMinSize, 256)).To(Succeed())
			Expect(ops.SetOpt(s, sockops.OptBufferSize, 4096)).To(Succeed())

			got, err := ops.GetOpt(s, sockops.OptBufferSize)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(uint64(4096)))
		})

		It("rejects an unknown option", func() {
			ops := newOps(ctx, net, 2, "sockopt")
			s := ops.New(vsocket.TypeStream, false)
			_, err := ops.GetOpt(s, sockops.Opt(99))
			Expect(err).To(MatchError(errcode.ENoProtoOpt.Unix()))
		})
	})

	Describe("Release", func() {
		It("drops a pending child still queued on a released listener", func() {
			serverOps := newOps(ctx, net, 2, "release-server")
			listener := serverOps.New(vsocket.TypeStream, false)
			addr := wire.Addr{CID: 2, Port: 1025}
			Expect(serverOps.Bind(listener, addr)).To(Succeed())
			Expect(serverOps.Listen(listener, 4)).To(Succeed())

			clientOps := newOps(ctx, net, 3, "release-client")
			client := clientOps.New(vsocket.TypeStream, false)
			go func() { _ = clientOps.Connect(ctx, client, addr, false) }()

			Eventually(func() bool { return listener.Own.HasAcceptable() }, time.Second).Should(BeTrue())

			Expect(serverOps.Release(listener)).To(Succeed())
			Eventually(func() vsocket.State { return client.State() }, time.Second).Should(Equal(vsocket.StateConnected))

			_ = clientOps.Release(client)
		})
	})
})
