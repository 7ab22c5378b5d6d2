// Package client subscribes to a statuspage server's realtime events.
//
// A process creates one Controller and shares it between every consumer.
// The Controller owns the single websocket, reconnects with a bounded retry
// policy and rejoins its organization room after every reconnect. Consumers
// register typed callbacks with Subscribe; unsubscribing never closes the
// shared connection, only Close does.
//
// Event payloads are hints, not state. A Resyncer re-reads the public status
// endpoint through a StatusReader whenever an event arrives or the
// connection comes back, so missed or reordered events cannot leave a
// consumer out of date.
//
//	c, err := client.New("http://localhost:3000")
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	c.SetOrganization("demo")
//	if err := c.Connect(ctx); err != nil {
//	    return err
//	}
//
//	r := client.NewResyncer(c, client.NewStatusReader("http://localhost:3000", nil), "demo",
//	    func(ps *status.PublicStatus) { render(ps) })
//	go r.Run(ctx)
package client
