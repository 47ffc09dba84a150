package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/lingua-quest/pkg/chat"
	"github.com/jwebster45206/lingua-quest/pkg/contract"
	"github.com/jwebster45206/lingua-quest/pkg/prompts"
	"github.com/jwebster45206/lingua-quest/pkg/state"
	"github.com/jwebster45206/lingua-quest/pkg/turn"
)

const (
	AgentName       = "Narrator"
	PlaceHolderText = "Say something in your target language..."
	GameOverText    = "GAME OVER. Your health has run out. Type /restart to play again or /quit to leave."
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	ctx        context.Context
	newSession func() *turn.Session
	session    *turn.Session

	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	// pending is the player's utterance while its turn is in flight
	pending string
	// notices are command outputs shown below the log until the next turn
	notices []string

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type turnResultMsg struct {
	outcome *turn.Outcome
	err     error
}

type copiedMsg struct {
	err error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	feedbackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("180")). // tan
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

// NewConsoleUI builds the model around a fresh session. The opening turn is
// played as soon as the program starts.
func NewConsoleUI(ctx context.Context, newSession func() *turn.Session) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = chat.MaxMessageLength
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		ctx:          ctx,
		newSession:   newSession,
		session:      newSession(),
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: metaVp,
		loading:      true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.startTurn(), progressTick())
}

// title is the banner line, e.g. "LINGUA QUEST: SPANISH (BEGINNER)".
func title(gs *state.GameState) string {
	upper := cases.Upper(language.English)
	return upper.String(fmt.Sprintf("Lingua Quest: %s (%s)",
		prompts.LanguageName(gs.TargetLanguage), gs.LanguageLevel))
}

func writeMetadata(gs *state.GameState, width int) string {
	if width < 10 {
		width = 10
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("GAME STATE") + "\n\n")

	content.WriteString("Session:\n")
	content.WriteString(gs.ID.String()[:8] + "...\n\n")

	content.WriteString("Location:\n")
	content.WriteString(wordwrap.String(gs.Location, width) + "\n\n")

	content.WriteString(fmt.Sprintf("Health: %d\n", gs.Health))
	content.WriteString(fmt.Sprintf("Standing: %d\n", gs.Standing))
	content.WriteString(fmt.Sprintf("Turn: %d\n\n", gs.TurnCounter))

	content.WriteString("Mission:\n")
	if gs.Mission != "" {
		content.WriteString(wordwrap.String(gs.Mission, width) + "\n\n")
	} else {
		content.WriteString("None\n\n")
	}

	content.WriteString("Inventory:\n")
	if len(gs.Inventory) == 0 {
		content.WriteString("Empty\n")
	}
	for _, item := range gs.Inventory {
		content.WriteString("• " + item + "\n")
	}

	if gs.LinguisticEvaluation != "" {
		content.WriteString("\nFeedback:\n")
		content.WriteString(feedbackStyle.Render(wordwrap.String(gs.LinguisticEvaluation, width)) + "\n")
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• /state: State\n")
	content.WriteString("• /copy: Copy reply\n")

	return content.String()
}

// writeChatContent builds the chat content from the session log for the current viewport width
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding
	if chatWidth < 20 {
		chatWidth = 20
	}
	gs := m.session.State()

	var content strings.Builder
	content.WriteString(titleStyle.Render(title(gs)) + "\n\n")
	content.WriteString("Talk your way through the story in your target language.\n")
	content.WriteString("Type /help for commands.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth-6)) + "\n\n")

	c, lookupErr := contract.Lookup(gs.Contract)
	for _, msg := range gs.ChatHistory {
		switch msg.Role {
		case chat.ChatRoleNarrator:
			var d contract.Display
			if lookupErr != nil {
				d = contract.Display{Raw: msg.Content}
			} else {
				d = contract.Render(contract.Parse(c, msg.Content))
			}
			content.WriteString(formatNarratorReply(d, chatWidth) + "\n\n")
		case chat.ChatRolePlayer:
			content.WriteString(formatPlayerMessage(msg.Content, chatWidth) + "\n\n")
		}
	}

	if m.pending != "" {
		content.WriteString(formatPlayerMessage(m.pending, chatWidth) + "\n\n")
	}

	// If currently loading, add the progress bar
	if m.loading {
		content.WriteString(m.renderProgressBar() + "\n\n")
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render(wordwrap.String("Error: "+m.err.Error(), chatWidth)) + "\n\n")
	}

	if gs.IsGameOver() {
		content.WriteString(errorStyle.Bold(true).Render(wordwrap.String(GameOverText, chatWidth)) + "\n\n")
	}

	for _, notice := range m.notices {
		content.WriteString(notice + "\n")
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) refresh() {
	m.writeChatContent()
	m.metaViewport.SetContent(writeMetadata(m.session.State(), m.metaViewport.Width-2))
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		// The viewports ignore events outside their bounds
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)

		return m, tea.Batch(tiCmd, vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.75) - 4
		metaWidth := m.width - chatWidth - 6

		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)

		m.ready = true
		// Reformat all content for the new width
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			return m.handleInput()
		}

	case turnResultMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			// Nothing was saved; give the utterance back for another try
			if m.pending != "" {
				m.textarea.SetValue(m.pending)
			}
		} else {
			m.err = nil
			if msg.outcome != nil && !msg.outcome.Result.OK() {
				m.notices = append(m.notices, promptStyle.Render("The narrator's reply could not be read and is shown as-is."))
			}
		}
		m.pending = ""
		m.refresh()
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.notices = append(m.notices, errorStyle.Render("Copy failed: "+msg.err.Error()))
		} else {
			m.notices = append(m.notices, promptStyle.Render("Copied the last narrator reply to the clipboard."))
		}
		m.writeChatContent()
		return m, nil

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()     // Refresh the chat content to update the progress bar
			return m, progressTick() // Continue the animation
		}
	}

	// Update components for non-mouse events
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// handleInput dispatches the textarea contents on Enter.
func (m ConsoleUI) handleInput() (tea.Model, tea.Cmd) {
	if m.loading {
		return m, nil
	}

	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}
	if chat.IsQuit(input) {
		return m, tea.Quit
	}

	m.textarea.Reset()
	if m.session.State().IsGameOver() {
		m.notices = append(m.notices, promptStyle.Render("The game is over. Type /restart or /quit."))
		m.writeChatContent()
		return m, nil
	}

	m.loading = true
	m.progressTick = 0
	m.pending = input
	m.notices = nil
	m.err = nil
	m.writeChatContent()

	return m, tea.Batch(m.submitTurn(input), progressTick())
}

// formatNarratorReply renders the scene, the NPC line and the feedback of a
// reply. Undecodable replies are shown as-is.
func formatNarratorReply(d contract.Display, width int) string {
	prefix := AgentName + ": "
	if d.Raw != "" {
		return narratorStyle.Render(prefix) + wordwrap.String(d.Raw, width-len(prefix))
	}

	var parts []string
	if d.Scene != "" {
		parts = append(parts, narratorStyle.Render(prefix)+wordwrap.String(d.Scene, width-len(prefix)))
	}
	if d.Dialogue != "" {
		parts = append(parts, formatDialogue(d.Dialogue, width))
	}
	if d.Feedback != "" {
		parts = append(parts, feedbackStyle.Render(wordwrap.String("Feedback: "+d.Feedback, width)))
	}
	return strings.Join(parts, "\n\n")
}

// formatDialogue highlights a leading "Speaker:" on each wrapped line.
func formatDialogue(dialogue string, width int) string {
	lines := strings.Split(wordwrap.String(dialogue, width), "\n")
	formatted := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if idx := strings.Index(trimmed, ":"); idx > 0 && idx <= 20 {
			speaker := trimmed[:idx]
			if len(strings.Fields(speaker)) <= 2 {
				formatted = append(formatted, speakerStyle.Render(speaker+":")+trimmed[idx+1:])
				continue
			}
		}
		formatted = append(formatted, line)
	}
	return strings.Join(formatted, "\n")
}

func formatPlayerMessage(message string, width int) string {
	return userStyle.Render("You: ") + wordwrap.String(message, width-6)
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.ToLower(strings.TrimSpace(input))
	m.textarea.Reset()

	var out tea.Cmd
	switch cmd {
	case "/help":
		helpText := `
Commands:
• /help - Show this help
• /state - Show the game state
• /copy - Copy the last narrator reply
• /restart - Start a new game
• /quit - Leave (also: exit, quit)

How to play:
• Answer the characters in your target language
• Health drops when you are misunderstood
• The game ends when your health reaches zero
`
		m.notices = append(m.notices, titleStyle.Render("Help:")+helpText)

	case "/state":
		m.notices = append(m.notices, titleStyle.Render("State:")+"\n"+
			wordwrap.String(prompts.StateContext(m.session.State()), m.chatViewport.Width-6)+"\n")

	case "/copy":
		text, ok := m.lastNarration()
		if !ok {
			m.notices = append(m.notices, promptStyle.Render("Nothing to copy yet."))
			break
		}
		out = copyToClipboard(text)

	case "/restart":
		if m.loading {
			m.notices = append(m.notices, promptStyle.Render("Wait for the narrator to finish first."))
			break
		}
		m.session = m.newSession()
		m.notices = nil
		m.err = nil
		m.loading = true
		m.progressTick = 0
		m.refresh()
		return m, tea.Batch(m.startTurn(), progressTick())

	case "/quit", "/exit":
		return m, tea.Quit

	default:
		m.notices = append(m.notices, errorStyle.Render(fmt.Sprintf("Unknown command %q. Type /help.", cmd)))
	}

	m.writeChatContent()
	return m, out
}

// lastNarration is the latest narrator reply as the player saw it.
func (m ConsoleUI) lastNarration() (string, bool) {
	gs := m.session.State()
	raw, ok := gs.LastNarratorMessage()
	if !ok {
		return "", false
	}
	c, err := contract.Lookup(gs.Contract)
	if err != nil {
		return raw, true
	}
	return contract.Render(contract.Parse(c, raw)).Narration(), true
}

func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: clipboard.WriteAll(text)}
	}
}

func (m ConsoleUI) startTurn() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		out, err := session.Start(m.ctx)
		return turnResultMsg{outcome: out, err: describeTurnError(err)}
	}
}

func (m ConsoleUI) submitTurn(input string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		out, err := session.Submit(m.ctx, input)
		return turnResultMsg{outcome: out, err: describeTurnError(err)}
	}
}

// describeTurnError shortens the errors a player is likely to see.
func describeTurnError(err error) error {
	var serviceErr *turn.ServiceError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("the narrator took too long to answer, try again")
	case errors.As(err, &serviceErr):
		return fmt.Errorf("the narrator is unavailable after %d attempt(s): %w", serviceErr.Attempts, serviceErr.Err)
	default:
		return err
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case turnResultMsg, progressTickMsg, copiedMsg:
		// Keep the game moving behind the modal
		m.showQuitModal = false
		model, cmd := m.Update(msg)
		ui := model.(ConsoleUI)
		ui.showQuitModal = true
		return ui, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to leave your adventure?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  " + loadingStyle.Render("Initializing...")
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 0))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	// Viewport width minus padding used elsewhere: 3 left + 3 right
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}

	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
