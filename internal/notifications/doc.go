// Package notifications provides the toast-style event sink conversion components publish into.
//
// A [Notification] carries a type (info, success, warning, error), a title and a message. The [Sink]
// keeps notifications visible for [DefaultTTL] after creation; [Sink.Active] only returns entries that
// have not yet expired. Publishers only append through the [Notifier] interface and never read back.
//
// When nothing consumes notifications, [Noop] discards them.
package notifications
