// Command vsockctl is a small local demo of the vsock core: it wires one
// in-process loopback Network (transport/memtransport), two Family
// instances standing in for a "client" and a "server" context id, and
// drives one listen/connect/accept/send/recv cycle end to end, printing
// what the server received and logging any step that fails. It exists for manual experimentation and as a runnable
// cross-check of the handshake; it is not a production server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spf13/viper"

	"github.com/sabouaram/vsock/family"
	"github.com/sabouaram/vsock/sockops"
	"github.com/sabouaram/vsock/transport/memtransport"
	"github.com/sabouaram/vsock/vconfig"
	"github.com/sabouaram/vsock/vlog"
	"github.com/sabouaram/vsock/vmetrics"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

func main() {
	var (
		serverCID = flag.Uint("server-cid", 2, "context id the demo server binds on")
		clientCID = flag.Uint("client-cid", 3, "context id the demo client connects from")
		port      = flag.Uint("port", 1025, "port the demo server listens on")
		msg       = flag.String("message", "hello from vsockctl", "payload sent client -> server")
	)
	flag.Parse()

	log := vlog.New("vsockctl")
	cfg, err := vconfig.Load(viper.New())
	if err != nil {
		log.Error(err, "invalid configuration")
		os.Exit(1)
	}

	net := memtransport.NewNetwork()
	serverNode := net.NewNode(uint32(*serverCID))
	clientNode := net.NewNode(uint32(*clientCID))

	serverFamily := family.New(serverNode, log.WithField("side", "server"), cfg.WorkQueueDepth)
	clientFamily := family.New(clientNode, log.WithField("side", "client"), cfg.WorkQueueDepth)

	reg := prometheus.NewRegistry()
	serverMetrics := vmetrics.New(serverFamily, serverFamily)
	serverMetrics.MustRegister(reg)
	serverFamily.SetHandshakeObserver(serverMetrics.ObserveHandshake)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	serverFamily.Start(ctx)
	clientFamily.Start(ctx)
	defer serverFamily.Stop()
	defer clientFamily.Stop()

	listener := serverFamily.Create(family.SockStream)
	addr := wire.Addr{CID: uint32(*serverCID), Port: uint32(*port)}
	if err := serverFamily.Ops.Bind(listener, addr); err != nil {
		log.Error(err, "server bind failed")
		os.Exit(1)
	}
	if err := serverFamily.Ops.Listen(listener, cfg.Backlog); err != nil {
		log.Error(err, "server listen failed")
		os.Exit(1)
	}

	accepted := make(chan *acceptResult, 1)
	go func() {
		child, err := serverFamily.Ops.Accept(ctx, listener, false)
		accepted <- &acceptResult{child: child, err: err}
	}()

	client := clientFamily.Create(family.SockStream)
	if err := clientFamily.Ops.Connect(ctx, client, addr, false); err != nil {
		log.Error(err, "client connect failed")
		os.Exit(1)
	}

	res := <-accepted
	if res.err != nil {
		log.Error(res.err, "server accept failed")
		os.Exit(1)
	}
	server := res.child

	n, err := clientFamily.Ops.SendMsg(ctx, client, []byte(*msg), false)
	if err != nil {
		log.Error(err, "sendmsg failed")
		os.Exit(1)
	}

	buf := make([]byte, n)
	got, err := serverFamily.Ops.RecvMsg(ctx, server, buf, true, false, false)
	if err != nil {
		log.Error(err, "recvmsg failed")
		os.Exit(1)
	}

	fmt.Printf("server received %d bytes: %q\n", got, string(buf[:got]))

	local, _ := serverFamily.Ops.GetName(server, false)
	remote, _ := serverFamily.Ops.GetName(server, true)
	fmt.Printf("accepted connection: local=%s remote=%s\n", local, remote)

	_ = clientFamily.Ops.Shutdown(client, sockops.ShutRDWR)
	_ = serverFamily.Release(server)
	_ = serverFamily.Release(listener)
	_ = clientFamily.Release(client)
}

type acceptResult struct {
	child *vsocket.Socket
	err   error
}
