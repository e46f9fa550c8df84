package postgres

const (
	queryGetRoom = `SELECT id, name, type, created_at FROM rooms WHERE id = $1`

	queryCreateRoom = `
		INSERT INTO rooms (name, type)
		VALUES ($1, $2)
		RETURNING id, created_at`

	queryListRooms = `
		SELECT id, name, type, created_at
		FROM rooms
		WHERE ($1::timestamptz IS NULL OR created_at < $1
		       OR (created_at = $1 AND id < $2))
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	queryListRoomsForUser = `
		SELECT r.id, r.name, r.type, r.created_at
		FROM rooms r
		JOIN room_users ru ON ru.room_id = r.id
		WHERE ru.user_id = $1
		ORDER BY r.created_at DESC, r.id DESC`

	queryIsMember = `SELECT EXISTS(SELECT 1 FROM room_users WHERE room_id = $1 AND user_id = $2)`

	queryAddMember = `
		INSERT INTO room_users (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) DO NOTHING`

	queryListMembers = `
		SELECT room_id, user_id, joined_at
		FROM room_users
		WHERE room_id = $1
		ORDER BY joined_at ASC, id ASC`

	queryAppendMessage = `
		INSERT INTO messages (room_id, user_id, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	queryHistory = `
		SELECT m.id, m.room_id, m.user_id, u.username, m.message, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = $1 AND m.id > $2
		ORDER BY m.id ASC
		LIMIT $3`

	queryCreateUser = `
		INSERT INTO users (username, password)
		VALUES ($1, $2)
		RETURNING id, created_at`

	queryGetUserByUsername = `SELECT id, username, password, created_at FROM users WHERE username = $1`

	queryExistsUserByUsername = `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`
)
