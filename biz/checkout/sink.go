package checkout

import "sync"

// Message 一条用户提示
type Message struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// MessageLog 收集提示消息，供 HTTP 接口随响应返回
type MessageLog struct {
	mu       sync.Mutex
	messages []Message
}

func (l *MessageLog) ShowMessage(level, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, Message{Level: level, Text: text})
}

// Messages 返回已收集消息的副本
func (l *MessageLog) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// LinkRecorder 记录跳转目标，不做实际跳转
type LinkRecorder struct {
	mu   sync.Mutex
	link string
}

func (r *LinkRecorder) GoToLink(link string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.link = link
}

func (r *LinkRecorder) Link() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.link
}
