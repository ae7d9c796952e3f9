// SPDX-License-Identifier: Apache-2.0

package secretservice

import "github.com/godbus/dbus/v5"

const (
	BusName     = "org.freedesktop.secrets"
	ServicePath = dbus.ObjectPath("/org/freedesktop/secrets")

	ServiceIface    = "org.freedesktop.Secret.Service"
	CollectionIface = "org.freedesktop.Secret.Collection"
	ItemIface       = "org.freedesktop.Secret.Item"
	PromptIface     = "org.freedesktop.Secret.Prompt"

	DefaultAlias = "default"

	// NoPrompt is returned when no user interaction is needed.
	NoPrompt = dbus.ObjectPath("/")

	propItemLabel       = ItemIface + ".Label"
	propItemAttributes  = ItemIface + ".Attributes"
	propCollectionLabel = CollectionIface + ".Label"

	errNoSuchObject = "org.freedesktop.Secret.Error.NoSuchObject"
	errIsLocked     = "org.freedesktop.Secret.Error.IsLocked"
)

// Attribute names the backend writes.
const (
	// SchemaAttr scopes items to one schema, as libsecret does.
	SchemaAttr = "xdg:schema"
	// AccountAttr carries the backend target.
	AccountAttr = "account"
	// ExplanationAttr marks the warmup control item.
	ExplanationAttr = "explanation"
)

// Secret is the D-Bus type (oayays) representing an encoded secret.
type Secret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}
