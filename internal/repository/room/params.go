package room

type CreateRoomParams struct {
	RoomID   string
	Name     string
	Host     string
	Members  []string
	VideoURL *string
}

type AddMemberParams struct {
	RoomID string
	UserID string
}
