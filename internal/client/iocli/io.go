package iocli

//go:generate moq -out io_mock.go . IO

// IO ввод и вывод команд клиента
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	// ReadInput читает строку без завершающего перевода строки.
	// Конец ввода возвращается как io.EOF.
	ReadInput(prompt string) (string, error)
	// Interactive сообщает, что ввод идет с терминала
	Interactive() bool
}
