// Package ptt provides a ready-to-run dispatch push-to-talk client.
//
// It wires the lower-level packages together: the UDP transport feeds
// inbound datagrams to a session.Runner, which owns the protocol state
// machine and sends through the same transport. Audio datagrams go to an
// audio.Receiver and protocol events to an optional metrics.Collector.
//
// # Creating a Client
//
//	client, err := ptt.NewClient(ptt.ClientConfig{
//	    Server:   "82.166.254.181:25000",
//	    Username: "999000000000075087",
//	    Password: "12345",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Stop()
//
//	// Once a session is active:
//	client.RequestFloor(ctx)
//
// # Configuration files
//
// LoadConfigFile reads a YAML file into a FileConfig, which converts to a
// ClientConfig:
//
//	fc, err := ptt.LoadConfigFile("client.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg := fc.ClientConfig()
//	cfg.LoggerFactory = fc.LoggerFactory()
//
// # Testing
//
// ClientConfig.ControlConn accepts any net.PacketConn, so a client can talk
// to a scripted server over transport.Pipe without sockets. NewTestPair
// sets that up with a TestServer on the other end.
package ptt
