package types

// Gateway wire protocol. Request and response bodies are the entity shapes
// from internal/game and internal/store, JSON encoded.
//
// POST   /sessions                      body: Session        -> 201 Session | 409
// GET    /sessions/code/{code}                               -> 200 Session | 404
// GET    /sessions/{id}                                      -> 200 Session | 404
// PUT    /sessions/{id}                 body: Session        -> 200 | 404
// POST   /sessions/{id}/players         body: Player         -> 201 | 409
// PUT    /sessions/{id}/players         body: Player         -> 200 | 404
// GET    /sessions/{id}/players                              -> 200 [Player]
// DELETE /sessions/{id}/players                              -> 204
// POST   /sessions/{id}/shots           body: Shot           -> 201
// GET    /sessions/{id}/shots                                -> 200 [Shot]
// DELETE /sessions/{id}/shots                                -> 204
// POST   /sessions/{id}/presence        body: Presence       -> 202
// GET    /sessions/{id}/snapshot                             -> 200 Snapshot | 404
// GET    /ws?session={id}&types=a,b                          -> stream of Event frames
// GET    /healthz                                            -> 200

// ErrorBody is the JSON body of every non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
}
