package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/msniranjan18/chit-chat-client/pkg/logging"
	"github.com/msniranjan18/chit-chat-client/pkg/models"
	"github.com/msniranjan18/chit-chat-client/pkg/notify"
	"github.com/msniranjan18/chit-chat-client/pkg/state"
)

const helpText = `Commands:
  /signup <full name> <email> <password>   create an account
  /login <email> <password>                log in
  /logout                                  log out
  /me                                      show the logged-in user
  /avatar <url>                            set your profile picture
  /users                                   list people you can message
  /use <number|id|name>                    open a conversation
  /close                                   close the conversation
  /history                                 reprint the conversation
  /online                                  list who is online
  /theme [name]                            show or set the theme
  /help                                    show this help
  /quit                                    exit
Anything else is sent to the open conversation.`

func chatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Env, cfg.LogLevel)
			out := &lockedWriter{w: cmd.OutOrStdout()}

			notifier := notify.Multi(notify.NewConsole(out), notify.NewLogger(logger))
			a, err := newApp(cmd.Context(), cfg, logger, notifier)
			if err != nil {
				return err
			}
			defer a.Close()

			return newREPL(a, out).run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

// lockedWriter lets live updates and the prompt share one terminal.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

type repl struct {
	app *app
	out io.Writer

	// peers is the roster as last printed by /users, for numeric /use.
	peers []models.User

	unsubscribe func()
}

func newREPL(a *app, out io.Writer) *repl {
	r := &repl{app: a, out: out}
	r.unsubscribe = a.conv.Subscribe(r.liveWatcher())
	return r
}

// liveWatcher prints messages appended by the peer while a conversation is
// open. History loads arrive in the update that clears IsMessagesLoading
// and are skipped.
func (r *repl) liveWatcher() func(state.ConversationState) {
	var (
		peerID     string
		count      int
		wasLoading bool
	)
	return func(st state.ConversationState) {
		current := ""
		if st.SelectedUser != nil {
			current = st.SelectedUser.ID
		}

		appended := current != "" && current == peerID && !wasLoading && len(st.Messages) == count+1
		if appended {
			msg := st.Messages[len(st.Messages)-1]
			if msg.SenderID == current {
				r.printMessage(st.SelectedUser.FullName, msg)
			}
		}

		peerID = current
		count = len(st.Messages)
		wasLoading = st.IsMessagesLoading
	}
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	defer r.unsubscribe()

	r.app.session.CheckSession(ctx)
	if user := r.app.session.State().AuthUser; user != nil {
		fmt.Fprintf(r.out, "Welcome back, %s.\n", user.FullName)
	} else {
		fmt.Fprintln(r.out, "Not logged in. Use /login or /signup; /help lists commands.")
	}

	scanner := bufio.NewScanner(in)
	for {
		r.prompt()
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		if quit := r.handle(ctx, strings.TrimSpace(scanner.Text())); quit {
			return nil
		}
	}
}

func (r *repl) prompt() {
	name := "chitchat"
	if peer := r.app.conv.State().SelectedUser; peer != nil {
		name = peer.FullName
	}
	fmt.Fprint(r.out, themeColor(r.app.pref.Theme()).Sprintf("%s> ", name))
}

// handle runs one input line and reports whether the user asked to quit.
func (r *repl) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.send(ctx, line)
		return false
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/signup":
		if len(args) < 3 {
			r.usage("/signup <full name> <email> <password>")
			return false
		}
		n := len(args)
		_ = r.app.session.SignUp(ctx, models.AuthRequest{
			FullName: strings.Join(args[:n-2], " "),
			Email:    args[n-2],
			Password: args[n-1],
		})
	case "/login":
		if len(args) != 2 {
			r.usage("/login <email> <password>")
			return false
		}
		_ = r.app.session.Login(ctx, models.AuthRequest{Email: args[0], Password: args[1]})
	case "/logout":
		r.app.conv.CloseConversation()
		_ = r.app.session.Logout(ctx)
	case "/me":
		r.me()
	case "/avatar":
		if len(args) != 1 {
			r.usage("/avatar <url>")
			return false
		}
		_ = r.app.session.UpdateProfile(ctx, models.ProfileUpdateRequest{ProfilePic: args[0]})
	case "/users":
		r.users(ctx)
	case "/use":
		if len(args) == 0 {
			r.usage("/use <number|id|name>")
			return false
		}
		r.use(ctx, strings.Join(args, " "))
	case "/close":
		r.app.conv.CloseConversation()
	case "/history":
		r.history()
	case "/online":
		r.online()
	case "/theme":
		r.theme(ctx, args)
	default:
		fmt.Fprintf(r.out, "Unknown command %s. Type /help.\n", cmd)
	}
	return false
}

func (r *repl) usage(text string) {
	fmt.Fprintf(r.out, "Usage: %s\n", text)
}

func (r *repl) me() {
	user := r.app.session.State().AuthUser
	if user == nil {
		fmt.Fprintln(r.out, "Not logged in.")
		return
	}
	fmt.Fprintf(r.out, "%s <%s> id=%s\n", user.FullName, user.Email, user.ID)
	if user.ProfilePic != "" {
		fmt.Fprintf(r.out, "  avatar: %s\n", user.ProfilePic)
	}
}

func (r *repl) users(ctx context.Context) {
	if err := r.app.conv.FetchPeers(ctx); err != nil {
		return
	}
	st := r.app.session.State()
	r.peers = r.app.conv.State().Users
	if len(r.peers) == 0 {
		fmt.Fprintln(r.out, "Nobody else is here yet.")
		return
	}
	for i, u := range r.peers {
		marker := " "
		if st.IsOnline(u.ID) {
			marker = color.GreenString("●")
		}
		fmt.Fprintf(r.out, "%3d %s %s (%s)\n", i+1, marker, u.FullName, u.ID)
	}
}

func (r *repl) findPeer(query string) *models.User {
	if n, err := strconv.Atoi(query); err == nil && n >= 1 && n <= len(r.peers) {
		u := r.peers[n-1]
		return &u
	}
	for _, u := range r.app.conv.State().Users {
		if u.ID == query || strings.EqualFold(u.FullName, query) {
			u := u
			return &u
		}
	}
	return nil
}

func (r *repl) use(ctx context.Context, query string) {
	if len(r.app.conv.State().Users) == 0 {
		if err := r.app.conv.FetchPeers(ctx); err != nil {
			return
		}
	}
	peer := r.findPeer(query)
	if peer == nil {
		fmt.Fprintf(r.out, "No user matches %q. Try /users.\n", query)
		return
	}

	if err := r.app.conv.OpenConversation(ctx, peer); err != nil {
		return
	}
	fmt.Fprintf(r.out, "Chatting with %s.\n", peer.FullName)
	r.history()
}

func (r *repl) history() {
	st := r.app.conv.State()
	if st.SelectedUser == nil {
		fmt.Fprintln(r.out, "No conversation open. Use /use first.")
		return
	}
	if len(st.Messages) == 0 {
		fmt.Fprintln(r.out, "No messages yet.")
		return
	}
	for _, m := range st.Messages {
		name := "you"
		if m.SenderID == st.SelectedUser.ID {
			name = st.SelectedUser.FullName
		}
		r.printMessage(name, m)
	}
}

func (r *repl) printMessage(name string, m models.Message) {
	body := m.Text
	if m.Image != "" {
		if body != "" {
			body += " "
		}
		body += "[image]"
	}
	fmt.Fprintf(r.out, "%s %s: %s\n", m.CreatedAt.Local().Format("15:04"), color.New(color.Bold).Sprint(name), body)
}

func (r *repl) online() {
	st := r.app.session.State()
	if st.Channel == nil {
		fmt.Fprintln(r.out, "Live updates are not connected.")
		return
	}
	fmt.Fprintf(r.out, "%d online: %s\n", len(st.OnlineUsers), strings.Join(st.OnlineUsers, ", "))
}

func (r *repl) theme(ctx context.Context, args []string) {
	if len(args) > 0 {
		if err := r.app.pref.SetTheme(ctx, args[0]); err != nil {
			fmt.Fprintf(r.out, "Could not save theme: %v\n", err)
			return
		}
	}
	fmt.Fprintf(r.out, "Theme: %s\n", r.app.pref.Theme())
}

func (r *repl) send(ctx context.Context, text string) {
	err := r.app.conv.SendMessage(ctx, models.MessageRequest{Text: text})
	switch {
	case errors.Is(err, state.ErrNoPeerSelected):
		fmt.Fprintln(r.out, "No conversation open. Use /users and /use first.")
	case err == nil:
		msgs := r.app.conv.State().Messages
		if n := len(msgs); n > 0 {
			r.printMessage("you", msgs[n-1])
		}
	}
}
