// Package driver implements named driver services, synchronous command
// dispatch and event delivery.
//
// A Host is the naming facility. Drivers publish an Endpoint under a
// unique name and a device class; callers Bind a name to obtain a Service
// handle. Each Bind returns an independent handle with its own binding id,
// so trace events from different callers of the same endpoint can be told
// apart.
//
// # Dispatch
//
// Service.Dispatch runs the endpoint's Dispatcher on the calling goroutine.
// Requests and replies travel in pbuf.PBuf parameter buffers, both of which
// are optional. The result is an error carrying a wire.Status:
//
//	err := svc.Dispatch(ctx, cmdID, req, reply)
//	code := wire.StatusOf(err) // 0 on success, negative on failure
//
// # Events
//
// Drivers raise events with Endpoint.Notify (queued, delivered on the
// endpoint's notifier goroutine) or Endpoint.Deliver (synchronous). Every
// registered Listener receives its own read cursor over the same payload.
//
// # Groups
//
// A Group aggregates several Service handles so that one listener
// registration covers all of them. Registration is all-or-nothing: if any
// member rejects the listener, the members that already accepted it are
// rolled back in reverse order. A group never owns its members; recycling
// the group only removes its own registrations.
package driver
