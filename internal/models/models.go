package models

// All 回傳需要遷移的所有模型
func All() []interface{} {
	return []interface{}{&User{}, &Participant{}, &Thread{}, &Message{}}
}
