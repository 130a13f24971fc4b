package models

// Realtime event names.
const (
	EventBoardNotFound   = "BoardNotFound"
	EventSwitchedBoard   = "SwitchedBoard"
	EventUserJoinedBoard = "UserJoinedBoard"
	EventUserLeftBoard   = "UserLeftBoard"
	EventReceiveElement  = "ReceiveElement"
	EventReceiveImage    = "ReceiveImage"
	EventRemoveElement   = "RemoveElement"
	EventBoardCreated    = "BoardCreated"
	EventError           = "Error"
)

// Client request types.
const (
	RequestSwitchBoard = "SwitchBoard"
	RequestCreateBoard = "CreateBoard"
)

// BoardEvent is emitted over websocket connections.
type BoardEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// PresenceEvent is the payload of UserJoinedBoard and UserLeftBoard.
type PresenceEvent struct {
	UserID      string            `json:"userId"`
	UserName    string            `json:"userName"`
	BoardID     string            `json:"boardId"`
	JoinedUsers []JoinedBoardUser `json:"joinedUsers"`
}
