package notifier

// TextNotifier 是最小的文本推送接口，调用方不依赖具体渠道。
type TextNotifier interface {
	SendText(text string) error
}

// Nop 丢弃所有消息，通知未启用时使用。
type Nop struct{}

func (Nop) SendText(string) error { return nil }
