// Package ws implements the real-time fan-out hub for tracklane-server.
//
// Each WebSocket client connects scoped to one project via
// /ws/tasks/{project_id} and joins that project's room. Task change events —
// sent by another client on the same room, or published by the mutation
// bridge after a CRUD write — are pushed to every other member of the room.
//
// New(opts) creates a Hub.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, joins the project
// room, and serves the session until the connection closes.
// Hub.Publish(roomKey, payload) fans a payload out to every room member.
// Hub.Run(ctx) blocks until ctx is cancelled, then closes all connections.
//
// Message format sent to clients:
//
//	{
//	  "type": "task_update",
//	  "data": { /* publisher-supplied payload, verbatim */ }
//	}
//
// Inbound messages with a type other than "task_update" are ignored, and
// malformed frames are dropped without closing the connection. A client that
// sends a "task_update" does not receive its own echo — the sender already
// holds the authoritative state.
//
// Delivery is best-effort: there is no replay for clients that reconnect, and
// a member whose outgoing buffer is full is disconnected rather than allowed
// to stall delivery to the rest of the room. Within one room, every member
// observes events in publish order.
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. WebSocket endpoint is mounted at /ws/tasks/ by the server.
package ws
