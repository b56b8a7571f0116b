package ws

// Типы кадров на сокете
const (
	TypeConnected = "connected" // подтверждение подключения
	TypeMessage   = "message"   // новое сообщение разговора
	TypeTyping    = "typing"    // входящий сигнал «печатаю»
	TypeRead      = "read"      // входящая отметка о прочтении
)

type Frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type ConnectedPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type MessagePayload struct {
	ID                string  `json:"id"`
	ConversationID    string  `json:"conversation_id"`
	SenderID          string  `json:"sender_id"`
	SenderDisplayName *string `json:"sender_display_name,omitempty"`
	SenderAvatarURL   *string `json:"sender_avatar_url,omitempty"`
	Text              string  `json:"text"`
	TSUnix            int64   `json:"ts_unix"`
}

type ReadPayload struct {
	MessageID string `json:"message_id"`
}
