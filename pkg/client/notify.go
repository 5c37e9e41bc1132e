package client

const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

// Notification is a non-blocking message for the user.
type Notification struct {
	Variant     string
	Title       string
	Description string
}

type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

func success(n Notifier, description string) {
	n.Notify(Notification{Variant: VariantDefault, Title: "Success", Description: description})
}

func failure(n Notifier, description string) {
	n.Notify(Notification{Variant: VariantDestructive, Title: "Error", Description: description})
}
