// internal/app/features/rooms/types.go
package rooms

// maxBodyBytes bounds every JSON request body on these endpoints.
const maxBodyBytes = 4 << 10

type createRoomRequest struct {
	Nickname string `json:"nickname"`
}

type createRoomResponse struct {
	RoomID    string `json:"roomId"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

type joinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

type joinRoomResponse struct {
	Success       bool   `json:"success"`
	RoomID        string `json:"roomId"`
	AlreadyMember bool   `json:"alreadyMember"`
	Message       string `json:"message,omitempty"`
}

type checkRoomResponse struct {
	Exists   bool  `json:"exists"`
	Expired  bool  `json:"expired"`
	IsMember *bool `json:"isMember,omitempty"`
}

// checkRoomError keeps the exists/expired pair on errors so clients can
// always treat a failed check as "unavailable".
type checkRoomError struct {
	Exists  bool   `json:"exists"`
	Expired bool   `json:"expired"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

type exitRoomRequest struct {
	RoomID string `json:"roomId"`
}

type exitRoomResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RoomID  string `json:"roomId"`
}
