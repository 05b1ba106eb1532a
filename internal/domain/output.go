package domain

// OutputState это состояние Output-узла.
//
//	idle → loading → success
//	               ↘ error
type OutputState string

const (
	OutputStateIdle    OutputState = "idle"
	OutputStateLoading OutputState = "loading"
	OutputStateSuccess OutputState = "success"
	OutputStateError   OutputState = "error"
)

// IsTerminal возвращает true для success и error.
func (s OutputState) IsTerminal() bool {
	return s == OutputStateSuccess || s == OutputStateError
}

// OutputStatus содержит результат ветки.
//
// Статус всегда заменяется целиком, частичных обновлений нет.
type OutputStatus struct {
	Status OutputState `json:"status" yaml:"status"`
	Images []string    `json:"images" yaml:"images"`
	Error  string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// LoadingStatus возвращает статус начала выполнения ветки.
func LoadingStatus() OutputStatus {
	return OutputStatus{Status: OutputStateLoading, Images: []string{}}
}

// SuccessStatus возвращает успешный статус с изображениями.
func SuccessStatus(images []string) OutputStatus {
	return OutputStatus{Status: OutputStateSuccess, Images: images}
}

// ErrorStatus возвращает статус ошибки. Изображения всегда пусты.
func ErrorStatus(msg string) OutputStatus {
	return OutputStatus{Status: OutputStateError, Images: []string{}, Error: msg}
}

// Clone возвращает копию статуса.
func (s OutputStatus) Clone() OutputStatus {
	s.Images = append([]string{}, s.Images...)
	return s
}

// Credentials содержит ключи доступа к семействам бэкендов.
// Пустая строка означает, что ключ не задан.
type Credentials struct {
	Gemini string `json:"gemini,omitempty"`
	OpenAI string `json:"openai,omitempty"`
}
