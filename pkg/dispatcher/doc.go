// Package dispatcher routes inbound message batches to a text handler.
//
// Only the first message of each batch is inspected. Its text is taken from
// the plain conversation payload, then the extended text payload, then an
// image caption; anything else yields an empty string. Messages without a
// payload are ignored.
//
// AutoReply is the default handler: it answers a trigger word with a fixed
// reply that quotes the original message.
//
// # Usage
//
//	d := dispatcher.New(
//	    dispatcher.AutoReply{Trigger: "hi", Reply: "hello"},
//	    dispatcher.WithLogger(log),
//	)
//	err := d.Handle(ctx, conn, batch)
package dispatcher
