package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stash-bot/internal/command"
	"stash-bot/internal/cooldown"
	"stash-bot/internal/permission"
	"stash-bot/internal/storage"
	st "stash-bot/internal/storagetypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	admin st.UserID = 1
	alice st.UserID = 42
	bob   st.UserID = 43
	self  st.UserID = 999
)

type fakeBackup struct {
	path string
	err  error
	n    int
}

func (f *fakeBackup) ForceBackup(context.Context) (string, error) {
	f.n++
	return f.path, f.err
}

type fakeFetcher map[string][]byte

func (f fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	data, ok := f[url]
	if !ok {
		return nil, errors.New("404")
	}
	return data, nil
}

type env struct {
	store  *storage.Storage
	perms  *permission.Policy
	backup *fakeBackup
	disp   *command.Dispatcher
}

func setup(t *testing.T, fetch fakeFetcher, roasts ...string) *env {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "stash.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	perms, err := permission.New([]st.UserID{admin}, nil, nil)
	require.NoError(t, err)

	bk := &fakeBackup{path: "/tmp/backups/stash_backup_20240506_070809.sqlite"}
	reg := command.NewRegistry()
	Register(reg, Deps{
		Store:       store,
		Permissions: perms,
		Backup:      bk,
		Fetcher:     fetch,
		Prefix:      ";;",
		Roasts:      roasts,
		NewRand:     func() *rand.Rand { return rand.New(rand.NewPCG(7, 7)) },
	}, command.WithCommandLogger())

	disp := command.NewDispatcher(reg, perms, cooldown.New(), command.Options{Prefix: ";;"})
	return &env{store: store, perms: perms, backup: bk, disp: disp}
}

func (e *env) run(t *testing.T, actor st.UserID, text string, reply ...*command.Message) command.Result {
	t.Helper()
	req := command.Request{Actor: actor, SelfID: self, Text: text}
	if len(reply) > 0 {
		req.Reply = reply[0]
	}
	res, ok := e.disp.Dispatch(context.Background(), req)
	require.True(t, ok, text)
	return res
}

func (e *env) get(t *testing.T, user st.UserID, key string) string {
	t.Helper()
	v, _, err := e.store.Get(context.Background(), user, key)
	require.NoError(t, err)
	return v
}

func TestParseMention(t *testing.T) {
	id, ok := parseMention("<@42>")
	assert.True(t, ok)
	assert.Equal(t, st.UserID(42), id)

	id, ok = parseMention("<@!43>")
	assert.True(t, ok)
	assert.Equal(t, st.UserID(43), id)

	for _, bad := range []string{"42", "<@abc>", "<@42", "@42>", "<#42>", "<@-1>"} {
		_, ok := parseMention(bad)
		assert.False(t, ok, bad)
	}
}

func TestAdd(t *testing.T) {
	e := setup(t, nil)

	res := e.run(t, alice, ";;add greeting hello world")
	assert.Equal(t, command.StatusSuccess, res.Status)
	assert.Equal(t, "hello world", e.get(t, alice, "greeting"))

	res = e.run(t, alice, ";;add greeting bye")
	assert.Equal(t, command.StatusFailure, res.Status)
	assert.Contains(t, res.Text, ";;add_o")
	assert.Equal(t, "hello world", e.get(t, alice, "greeting"))

	res = e.run(t, alice, ";;add_o greeting bye\n  now")
	assert.Equal(t, command.StatusSuccess, res.Status)
	assert.Equal(t, "bye\n  now", e.get(t, alice, "greeting"))

	res = e.run(t, alice, ";;add")
	assert.Equal(t, command.StatusInvalidArgs, res.Status)

	res = e.run(t, alice, ";;add lonely")
	assert.Equal(t, command.StatusInvalidArgs, res.Status)
}

func TestAdd_FromReply(t *testing.T) {
	e := setup(t, nil)
	reply := &command.Message{
		Content:     "  look at this ",
		Attachments: []command.Link{{URL: "https://cdn/a.png"}},
		Stickers:    []command.Link{{Name: "wave", URL: "https://cdn/s.png"}},
	}

	res := e.run(t, alice, ";;add pic", reply)
	assert.Equal(t, command.StatusSuccess, res.Status)
	assert.Equal(t, "look at this[Attachment 0](https://cdn/a.png) [wave](https://cdn/s.png) ", e.get(t, alice, "pic"))

	res = e.run(t, alice, ";;add empty", &command.Message{Content: "   "})
	assert.Equal(t, command.StatusFailure, res.Status)
	assert.Equal(t, msgEmptyMessage, res.Text)
}

func TestSaved(t *testing.T) {
	e := setup(t, nil)

	res := e.run(t, alice, ";;saved")
	assert.Equal(t, msgEmptyList, res.Text)

	e.run(t, alice, ";;add a 1")
	e.run(t, alice, ";;add b 2")
	res = e.run(t, alice, ";;saved")
	assert.Equal(t, "- a\n- b", res.Text)

	res = e.run(t, bob, ";;saved <@42>")
	assert.Equal(t, command.StatusNoPermission, res.Status)

	res = e.run(t, alice, ";;saved <@!42>")
	assert.Equal(t, "- a\n- b", res.Text)

	res = e.run(t, admin, ";;saved <@42>")
	assert.Equal(t, command.StatusSuccess, res.Status)
	assert.Equal(t, "Keys for <@42>:\n- a\n- b", res.Text)

	// anything that is not a mention lists the caller's own keys
	res = e.run(t, alice, ";;saved nobody")
	assert.Equal(t, command.StatusSuccess, res.Status)
	assert.Equal(t, "- a\n- b", res.Text)

	res = e.run(t, admin, ";;saved nobody")
	assert.Equal(t, msgEmptyList, res.Text)
}

func TestCommandNamesAreNotKeys(t *testing.T) {
	e := setup(t, nil)

	res := e.run(t, alice, ";;add help my saved text")
	assert.Equal(t, command.StatusFailure, res.Status)
	assert.Equal(t, fmt.Sprintf(msgKeyIsCommand, "help"), res.Text)
	_, found, err := e.store.Get(context.Background(), alice, "help")
	require.NoError(t, err)
	assert.False(t, found)

	res = e.run(t, alice, ";;add_o saved x")
	assert.Equal(t, command.StatusFailure, res.Status)

	e.run(t, alice, ";;add a 1")
	res = e.run(t, alice, ";;rename a roast")
	assert.Equal(t, fmt.Sprintf(msgKeyIsCommand, "roast"), res.Text)
	assert.Equal(t, "1", e.get(t, alice, "a"))

	e.run(t, bob, ";;add k v")
	res = e.run(t, alice, ";;steal <@43> k mock")
	assert.Equal(t, fmt.Sprintf(msgKeyIsCommand, "mock"), res.Text)
}

func TestDeleteAndDeleteMe(t *testing.T) {
	e := setup(t, nil)
	e.run(t, alice, ";;add a 1")
	e.run(t, alice, ";;add b 2")

	assert.Equal(t, command.StatusSuccess, e.run(t, alice, ";;delete a").Status)
	assert.Equal(t, command.StatusFailure, e.run(t, alice, ";;delete a").Status)
	assert.Equal(t, command.StatusInvalidArgs, e.run(t, alice, ";;delete").Status)

	assert.Equal(t, command.StatusSuccess, e.run(t, alice, ";;delete_me").Status)
	keys, err := e.store.ListKeys(context.Background(), alice)
	require.NoError(t, err)
	assert.Empty(t, keys)

	res := e.run(t, alice, ";;delete_me")
	assert.Equal(t, command.StatusFailure, res.Status)
	assert.Equal(t, msgEmptyList, res.Text)
}

func TestRename(t *testing.T) {
	e := setup(t, nil)

	res := e.run(t, alice, ";;rename a b")
	assert.Equal(t, msgEmptyList, res.Text)

	e.run(t, alice, ";;add a 1")
	e.run(t, alice, ";;add b 2")

	res = e.run(t, alice, ";;rename zz b")
	assert.Equal(t, msgKeyNotFound, res.Text)

	res = e.run(t, alice, ";;rename a b")
	assert.Equal(t, command.StatusFailure, res.Status)
	assert.Contains(t, res.Text, ";;rename_o")
	assert.Equal(t, "1", e.get(t, alice, "a"))
	assert.Equal(t, "2", e.get(t, alice, "b"))

	res = e.run(t, alice, ";;rename_o a b")
	assert.Equal(t, command.StatusSuccess, res.Status)
	assert.Equal(t, "1", e.get(t, alice, "b"))

	assert.Equal(t, command.StatusInvalidArgs, e.run(t, alice, ";;rename a").Status)
}

func TestSteal(t *testing.T) {
	e := setup(t, nil)
	e.run(t, bob, ";;add k v")

	res := e.run(t, alice, ";;steal <@43> missing")
	assert.Equal(t, msgKeyNotFound, res.Text)

	res = e.run(t, alice, ";;steal <@43> k")
	assert.Equal(t, command.StatusSuccess, res.Status)
	assert.Equal(t, "v", e.get(t, alice, "k"))
	assert.Equal(t, "v", e.get(t, bob, "k"))

	res = e.run(t, alice, ";;steal <@43> k")
	assert.Equal(t, command.StatusFailure, res.Status)

	res = e.run(t, alice, ";;steal <@43> k mine")
	assert.Equal(t, command.StatusSuccess, res.Status)
	assert.Equal(t, "v", e.get(t, alice, "mine"))

	assert.Equal(t, command.StatusInvalidArgs, e.run(t, alice, ";;steal bob k").Status)
	assert.Equal(t, command.StatusInvalidArgs, e.run(t, alice, ";;steal <@43>").Status)
}

func TestBlacklistCommands(t *testing.T) {
	e := setup(t, nil)

	res := e.run(t, alice, ";;blacklist_add <@43>")
	assert.Equal(t, command.StatusNoPermission, res.Status)
	assert.False(t, e.perms.IsBlacklisted(bob))

	res = e.run(t, admin, ";;blacklist_add <@43>")
	assert.Equal(t, command.StatusSuccess, res.Status)
	assert.True(t, e.perms.IsBlacklisted(bob))

	res = e.run(t, admin, ";;blacklist_add <@43>")
	assert.Equal(t, "User is already blacklisted.", res.Text)

	res = e.run(t, admin, ";;blacklist_add <@1>")
	assert.Equal(t, "You cannot blacklist another admin.", res.Text)
	assert.False(t, e.perms.IsBlacklisted(admin))

	res = e.run(t, bob, ";;help")
	assert.Equal(t, command.StatusNoPermission, res.Status)

	res = e.run(t, admin, ";;blacklist_remove <@43>")
	assert.Equal(t, command.StatusSuccess, res.Status)
	res = e.run(t, admin, ";;blacklist_remove <@43>")
	assert.Equal(t, "User is not blacklisted.", res.Text)

	assert.Equal(t, command.StatusInvalidArgs, e.run(t, admin, ";;blacklist_add bob").Status)
}

func TestBackupCommand(t *testing.T) {
	e := setup(t, nil)

	res := e.run(t, alice, ";;backup")
	assert.Equal(t, command.StatusNoPermission, res.Status)
	assert.Equal(t, 0, e.backup.n)

	res = e.run(t, admin, ";;backup")
	assert.Equal(t, command.StatusSuccess, res.Status)
	assert.Contains(t, res.Text, "stash_backup_20240506_070809.sqlite")

	e.backup.err = errors.New("disk full")
	res = e.run(t, admin, ";;backup")
	assert.Equal(t, command.StatusFailure, res.Status)
	assert.Equal(t, "Database backup failed.", res.Text)
}

func TestHelp(t *testing.T) {
	e := setup(t, nil)
	res := e.run(t, alice, ";;help")
	require.Equal(t, command.StatusSuccess, res.Status)

	for _, name := range []string{"add", "add_o", "saved", "delete", "delete_me", "rename", "rename_o", "steal",
		"blacklist_add", "blacklist_remove", "backup", "clap", "zalgo", "forbesify", "copypasta", "owo",
		"stretch", "mock", "deepfry", "roast", "help"} {
		assert.Contains(t, res.Text, "`;;"+name, name)
	}
	assert.Contains(t, res.Text, "(admin)")
	assert.Less(t, strings.Index(res.Text, "**Information**"), strings.Index(res.Text, "**Saved text**"))
}

func TestTextTransforms(t *testing.T) {
	e := setup(t, nil)

	res := e.run(t, alice, ";;mock")
	assert.Equal(t, command.StatusInvalidArgs, res.Status)
	assert.Equal(t, msgNeedReply, res.Text)

	res = e.run(t, alice, ";;mock", &command.Message{Content: "Hello"})
	assert.Equal(t, "hElLo", res.Text)

	res = e.run(t, alice, ";;clap", &command.Message{Content: "a b"})
	assert.Equal(t, "a 👏 b 👏", res.Text)

	for _, name := range []string{"zalgo", "forbesify", "copypasta", "owo", "stretch"} {
		res = e.run(t, alice, ";;"+name, &command.Message{Content: "hello there"})
		assert.Equal(t, command.StatusSuccess, res.Status, name)
		assert.NotEmpty(t, res.Text, name)
	}

	res = e.run(t, alice, ";;owo", &command.Message{Content: " "})
	assert.Equal(t, command.StatusFailure, res.Status)
}

func TestDeepfry(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	var huge bytes.Buffer
	require.NoError(t, png.Encode(&huge, image.NewGray(image.Rect(0, 0, 4097, 4096))))
	e := setup(t, fakeFetcher{
		"https://cdn/img.png":  buf.Bytes(),
		"https://cdn/junk.png": []byte("junk"),
		"https://cdn/huge.png": huge.Bytes(),
	})

	res := e.run(t, alice, ";;deepfry")
	assert.Equal(t, command.StatusInvalidArgs, res.Status)

	res = e.run(t, alice, ";;deepfry", &command.Message{Content: "no image"})
	assert.Equal(t, command.StatusInvalidArgs, res.Status)

	res = e.run(t, alice, ";;deepfry", &command.Message{Attachments: []command.Link{
		{URL: "https://cdn/notes.txt", ContentType: "text/plain"},
		{URL: "https://cdn/img.png", ContentType: "image/png"},
	}})
	require.Equal(t, command.StatusSuccess, res.Status)
	require.NotNil(t, res.Attachment)
	assert.Equal(t, "deepfried.jpg", res.Attachment.Name)
	assert.NotEmpty(t, res.Attachment.Data)

	res = e.run(t, alice, ";;deepfry", &command.Message{Attachments: []command.Link{{URL: "https://cdn/junk.png", ContentType: "image/png"}}})
	assert.Equal(t, "Failed to deepfry the image.", res.Text)

	res = e.run(t, alice, ";;deepfry", &command.Message{Attachments: []command.Link{{URL: "https://cdn/huge.png", ContentType: "image/png"}}})
	assert.Equal(t, command.StatusFailure, res.Status)
	assert.Equal(t, "That image is too big to deepfry.", res.Text)
	assert.Nil(t, res.Attachment)

	res = e.run(t, alice, ";;deepfry", &command.Message{Attachments: []command.Link{{URL: "https://cdn/gone.png", ContentType: "image/png"}}})
	assert.Equal(t, command.StatusFailure, res.Status)
}

func TestRoast(t *testing.T) {
	e := setup(t, nil, "you *smell*", "nice try")

	res := e.run(t, alice, ";;roast")
	require.Equal(t, command.StatusSuccess, res.Status)
	assert.True(t, strings.HasPrefix(res.Text, "<@42> "))
	assert.True(t, strings.HasSuffix(res.Text, "Try reading `;;help` twice next time"))

	res = e.run(t, alice, ";;roast <@999> <@43>")
	assert.True(t, strings.HasPrefix(res.Text, "<@42> "))
	assert.NotContains(t, res.Text, "<@43>")
	assert.True(t, strings.HasSuffix(res.Text, "Why would I roast myself?"))

	res = e.run(t, alice, ";;roast <@43> <@!1>")
	lines := strings.Split(res.Text, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "<@43> "))
	assert.True(t, strings.HasPrefix(lines[1], "<@1> "))
	assert.NotEqual(t, lines[0][len("<@43> "):], lines[1][len("<@1> "):])

	if strings.Contains(res.Text, "smell") {
		assert.Contains(t, res.Text, `\*smell\*`)
	}
}

func TestRoast_NoRoasts(t *testing.T) {
	e := setup(t, nil)
	res := e.run(t, alice, ";;roast")
	assert.Equal(t, command.StatusFailure, res.Status)
}

func TestLoadRoasts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roasts.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\n\n  two  \n"), 0644))

	roasts, err := LoadRoasts(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, roasts)

	_, err = LoadRoasts(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
