// SPDX-License-Identifier: Apache-2.0

package secretservice

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/akihiro/secure-storage/internal/errors"
)

// client is the part of org.freedesktop.Secret.Service the backend uses.
type client interface {
	OpenSession() (dbus.ObjectPath, error)
	SearchItems(attrs map[string]string) (unlocked, locked []dbus.ObjectPath, err error)
	Unlock(paths []dbus.ObjectPath) ([]dbus.ObjectPath, error)
	GetSecret(item, session dbus.ObjectPath) ([]byte, error)
	Attributes(item dbus.ObjectPath) (map[string]string, error)
	CreateItem(session dbus.ObjectPath, label string, attrs map[string]string, secret []byte) error
	Delete(item dbus.ObjectPath) error
	Close() error
}

// busClient talks to the Secret Service over the session bus.
type busClient struct {
	conn          *dbus.Conn
	promptTimeout time.Duration
}

// dial connects to the session bus.
func dial(promptTimeout time.Duration) (*busClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.Wrap(errors.KindUnavailable, "connect to session bus", nil, err).WithCode(dbusName(err))
	}
	return &busClient{conn: conn, promptTimeout: promptTimeout}, nil
}

func (c *busClient) service() dbus.BusObject {
	return c.conn.Object(BusName, ServicePath)
}

func (c *busClient) Close() error { return c.conn.Close() }

func (c *busClient) OpenSession() (dbus.ObjectPath, error) {
	var out dbus.Variant
	var session dbus.ObjectPath
	err := c.service().Call(ServiceIface+".OpenSession", 0, "plain", dbus.MakeVariant("")).Store(&out, &session)
	if err != nil {
		return "", callError("OpenSession", err)
	}
	return session, nil
}

func (c *busClient) SearchItems(attrs map[string]string) (unlocked, locked []dbus.ObjectPath, err error) {
	err = c.service().Call(ServiceIface+".SearchItems", 0, attrs).Store(&unlocked, &locked)
	if err != nil {
		return nil, nil, callError("SearchItems", err)
	}
	return unlocked, locked, nil
}

func (c *busClient) Unlock(paths []dbus.ObjectPath) ([]dbus.ObjectPath, error) {
	var unlocked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	if err := c.service().Call(ServiceIface+".Unlock", 0, paths).Store(&unlocked, &prompt); err != nil {
		return nil, callError("Unlock", err)
	}
	if prompt == NoPrompt {
		return unlocked, nil
	}
	result, err := c.prompt(prompt)
	if err != nil {
		return nil, err
	}
	if paths, ok := result.Value().([]dbus.ObjectPath); ok {
		return paths, nil
	}
	return nil, nil
}

func (c *busClient) GetSecret(item, session dbus.ObjectPath) ([]byte, error) {
	var s Secret
	if err := c.conn.Object(BusName, item).Call(ItemIface+".GetSecret", 0, session).Store(&s); err != nil {
		return nil, callError("GetSecret", err)
	}
	return s.Value, nil
}

func (c *busClient) Attributes(item dbus.ObjectPath) (map[string]string, error) {
	v, err := c.conn.Object(BusName, item).GetProperty(propItemAttributes)
	if err != nil {
		return nil, callError("Get Attributes", err)
	}
	attrs, ok := v.Value().(map[string]string)
	if !ok {
		return nil, errors.New(errors.KindInternal, fmt.Sprintf("unexpected Attributes type %s", v.Signature()), nil)
	}
	return attrs, nil
}

func (c *busClient) CreateItem(session dbus.ObjectPath, label string, attrs map[string]string, secret []byte) error {
	col, err := c.defaultCollection()
	if err != nil {
		return err
	}
	props := map[string]dbus.Variant{
		propItemLabel:      dbus.MakeVariant(label),
		propItemAttributes: dbus.MakeVariant(attrs),
	}
	s := Secret{Session: session, Value: secret, ContentType: "text/plain"}

	var item, prompt dbus.ObjectPath
	call := c.conn.Object(BusName, col).Call(CollectionIface+".CreateItem", 0, props, s, true)
	if err := call.Store(&item, &prompt); err != nil {
		if !isLocked(err) {
			return callError("CreateItem", err)
		}
		if _, err := c.Unlock([]dbus.ObjectPath{col}); err != nil {
			return err
		}
		call = c.conn.Object(BusName, col).Call(CollectionIface+".CreateItem", 0, props, s, true)
		if err := call.Store(&item, &prompt); err != nil {
			return callError("CreateItem", err)
		}
	}
	if prompt != NoPrompt {
		_, err := c.prompt(prompt)
		return err
	}
	return nil
}

func (c *busClient) Delete(item dbus.ObjectPath) error {
	var prompt dbus.ObjectPath
	if err := c.conn.Object(BusName, item).Call(ItemIface+".Delete", 0).Store(&prompt); err != nil {
		return callError("Delete", err)
	}
	if prompt != NoPrompt {
		_, err := c.prompt(prompt)
		return err
	}
	return nil
}

// defaultCollection resolves the "default" alias, creating the collection
// when the alias is unset.
func (c *busClient) defaultCollection() (dbus.ObjectPath, error) {
	var col dbus.ObjectPath
	if err := c.service().Call(ServiceIface+".ReadAlias", 0, DefaultAlias).Store(&col); err != nil {
		return "", callError("ReadAlias", err)
	}
	if col != NoPrompt {
		return col, nil
	}

	props := map[string]dbus.Variant{propCollectionLabel: dbus.MakeVariant("Login")}
	var prompt dbus.ObjectPath
	if err := c.service().Call(ServiceIface+".CreateCollection", 0, props, DefaultAlias).Store(&col, &prompt); err != nil {
		return "", callError("CreateCollection", err)
	}
	if prompt != NoPrompt {
		result, err := c.prompt(prompt)
		if err != nil {
			return "", err
		}
		if p, ok := result.Value().(dbus.ObjectPath); ok {
			col = p
		}
	}
	if col == NoPrompt || col == "" {
		return "", errors.New(errors.KindUnavailable, "no default collection", nil)
	}
	return col, nil
}

// prompt runs a Secret Service prompt and waits for its Completed signal.
func (c *busClient) prompt(path dbus.ObjectPath) (dbus.Variant, error) {
	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(PromptIface),
		dbus.WithMatchMember("Completed"),
	}
	if err := c.conn.AddMatchSignal(match...); err != nil {
		return dbus.Variant{}, callError("AddMatch", err)
	}
	defer c.conn.RemoveMatchSignal(match...) //nolint:errcheck

	signals := make(chan *dbus.Signal, 4)
	c.conn.Signal(signals)
	defer c.conn.RemoveSignal(signals)

	if err := c.conn.Object(BusName, path).Call(PromptIface+".Prompt", 0, "").Err; err != nil {
		return dbus.Variant{}, callError("Prompt", err)
	}

	timeout := time.After(c.promptTimeout)
	for {
		select {
		case sig := <-signals:
			if sig.Path != path || sig.Name != PromptIface+".Completed" || len(sig.Body) < 2 {
				continue
			}
			dismissed, _ := sig.Body[0].(bool)
			if dismissed {
				return dbus.Variant{}, errors.New(errors.KindUnavailable, "prompt dismissed", nil).WithCode("PromptDismissed")
			}
			result, _ := sig.Body[1].(dbus.Variant)
			return result, nil
		case <-timeout:
			_ = c.conn.Object(BusName, path).Call(PromptIface+".Dismiss", 0).Err
			return dbus.Variant{}, errors.New(errors.KindUnavailable, "prompt timed out", nil).WithCode("PromptTimeout")
		}
	}
}

// callError maps a D-Bus failure onto the error taxonomy, keeping the D-Bus
// error name as the native code.
func callError(method string, err error) error {
	return errors.Wrap(errors.KindUnavailable, "secret service "+method, nil, err).WithCode(dbusName(err))
}

func dbusName(err error) string {
	var de dbus.Error
	if stderrors.As(err, &de) {
		return de.Name
	}
	var dep *dbus.Error
	if stderrors.As(err, &dep) {
		return dep.Name
	}
	return ""
}

func isNoSuchObject(err error) bool { return codeOf(err) == errNoSuchObject }

func isLocked(err error) bool { return dbusName(err) == errIsLocked }

func codeOf(err error) string {
	if e, ok := errors.As(err); ok {
		return e.Code
	}
	return dbusName(err)
}
