// Package approval implements the promise-per-request broker that
// multiplexes an external chat channel across concurrently pending
// approvals, correlates replies, and classifies free-text reply intent.
package approval

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claudecube/claudecube/internal/llm"
)

// Resolution is the awaited outcome of a pending approval.
type Resolution struct {
	Approved   bool
	Reason     string
	PolicyText string
}

// ChatSender is the subset of the chat adapter capability the
// coordinator consumes to send and edit messages.
type ChatSender interface {
	SendMessage(ctx context.Context, approvalID, text string, keyboard Keyboard) (messageID string, err error)
	EditMessage(ctx context.Context, messageID, text string) error
	AnswerButton(ctx context.Context, callbackID, text string) error
}

// TmuxSender is the subset of the multiplexer adapter capability the
// coordinator consumes to inject forwarded/approved text into a pane.
type TmuxSender interface {
	SendKeys(paneID, text string) error
}

// Keyboard describes the inline-keyboard shape for an outgoing message.
type Keyboard int

const (
	KeyboardPermission Keyboard = iota // Approve / Deny / Details
	KeyboardStop                       // Continue / Let stop
)

// Classifier is the reply-classifier call shape the coordinator consumes.
type Classifier interface {
	ClassifyReply(ctx context.Context, text, toolName, label string) (llm.ReplyEvaluation, error)
}

type pendingApproval struct {
	id        string
	toolName  string
	isStop    bool
	sessionID string
	paneID    string
	label     string
	createdAt time.Time
	messageID string
	ch        chan Resolution
}

// messageContext indexes an outgoing message id back to its pending request.
type messageContext struct {
	approvalID string
	sessionID  string
	paneID     string
	label      string
	isStop     bool
}

// Coordinator owns the pending-approvals and message-context maps.
type Coordinator struct {
	chat       ChatSender
	tmux       TmuxSender
	classifier Classifier
	details    DetailsProvider
	ruleAppend RuleAppender
	log        *slog.Logger
	timeout    time.Duration

	mu      sync.Mutex
	pending map[string]*pendingApproval
	byMsg   map[string]messageContext
}

// New constructs a Coordinator. chat/tmux/classifier may each be nil; a nil
// chat means no human channel is available (callers must handle that by
// never constructing a Coordinator, or by checking for nil at the call
// site — see pipeline.Handler). A Coordinator built with a nil chat resolves
// every request at once as not approved, reason "no chat adapter configured".
func New(chat ChatSender, tmux TmuxSender, classifier Classifier, timeout time.Duration, log *slog.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		chat:       chat,
		tmux:       tmux,
		classifier: classifier,
		timeout:    timeout,
		log:        log,
		pending:    make(map[string]*pendingApproval),
		byMsg:      make(map[string]messageContext),
	}
}

func (c *Coordinator) nextID() string {
	return "approval-" + uuid.NewString()
}

// RequestApproval sends a permission-approval message and awaits resolution
// for a pre-tool escalation.
func (c *Coordinator) RequestApproval(ctx context.Context, sessionID, toolName, text, paneID, label string) Resolution {
	return c.request(ctx, sessionID, toolName, text, paneID, label, false, KeyboardPermission)
}

// RequestStopDecision sends a stop-decision message and awaits resolution
// for a Stop-event escalation.
func (c *Coordinator) RequestStopDecision(ctx context.Context, sessionID, text, paneID, label string) Resolution {
	return c.request(ctx, sessionID, "", text, paneID, label, true, KeyboardStop)
}

func (c *Coordinator) request(ctx context.Context, sessionID, toolName, text, paneID, label string, isStop bool, kb Keyboard) Resolution {
	id := c.nextID()
	pa := &pendingApproval{
		id:        id,
		toolName:  toolName,
		isStop:    isStop,
		sessionID: sessionID,
		paneID:    paneID,
		label:     label,
		createdAt: time.Now(),
		ch:        make(chan Resolution, 1),
	}

	c.mu.Lock()
	c.pending[id] = pa
	c.mu.Unlock()

	if c.chat == nil {
		c.deletePending(id)
		return Resolution{Approved: false, Reason: "no chat adapter configured"}
	}

	msgID, err := c.chat.SendMessage(ctx, id, text, kb)
	if err != nil {
		c.deletePending(id)
		return Resolution{Approved: false, Reason: "Telegram send failed: " + err.Error()}
	}

	c.mu.Lock()
	pa.messageID = msgID
	c.byMsg[msgID] = messageContext{approvalID: id, sessionID: sessionID, paneID: paneID, label: label, isStop: isStop}
	c.mu.Unlock()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-pa.ch:
		return res
	case <-timer.C:
		if _, ok := c.resolveOnce(id, Resolution{Approved: false, Reason: "Telegram approval timed out"}); ok {
			c.notifyBestEffort(ctx, msgID, "⏰ timed out")
		}
		return Resolution{Approved: false, Reason: "Telegram approval timed out"}
	case <-ctx.Done():
		c.resolveOnce(id, Resolution{Approved: false, Reason: "context cancelled"})
		return Resolution{Approved: false, Reason: "context cancelled"}
	}
}

// resolveOnce deletes the pending+context entries and delivers res exactly
// once; it returns ("", false) if the id was already resolved/absent,
// otherwise the outgoing message id that was associated with the request.
func (c *Coordinator) resolveOnce(id string, res Resolution) (messageID string, ok bool) {
	c.mu.Lock()
	pa, found := c.pending[id]
	if !found {
		c.mu.Unlock()
		return "", false
	}
	delete(c.pending, id)
	if pa.messageID != "" {
		delete(c.byMsg, pa.messageID)
	}
	c.mu.Unlock()

	select {
	case pa.ch <- res:
	default:
	}
	return pa.messageID, true
}

func (c *Coordinator) deletePending(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Coordinator) notifyBestEffort(ctx context.Context, messageID, note string) {
	if c.chat == nil {
		return
	}
	_ = c.chat.EditMessage(ctx, messageID, note)
}

// OnButton handles an inbound callback-query: approve/deny/details/continue/let-stop.
// callbackData is "<action>:<id>"
func (c *Coordinator) OnButton(ctx context.Context, callbackID, callbackData string) {
	action, id, ok := splitCallback(callbackData)
	if !ok {
		return
	}

	switch action {
	case "approve", "continue":
		if msgID, ok := c.resolveOnce(id, Resolution{Approved: true, Reason: "Approved via Telegram"}); ok {
			c.answerAndEdit(ctx, callbackID, msgID, "✅ Approved at "+stamp())
		} else {
			c.answerExpired(ctx, callbackID)
		}
	case "deny", "let-stop":
		if msgID, ok := c.resolveOnce(id, Resolution{Approved: false, Reason: "Denied via Telegram"}); ok {
			c.answerAndEdit(ctx, callbackID, msgID, "❌ Denied at "+stamp())
		} else {
			c.answerExpired(ctx, callbackID)
		}
	case "details":
		c.handleDetails(ctx, callbackID, id)
	}
}

func (c *Coordinator) answerAndEdit(ctx context.Context, callbackID, messageID, suffix string) {
	if c.chat == nil {
		return
	}
	_ = c.chat.AnswerButton(ctx, callbackID, "")
	if messageID != "" {
		_ = c.chat.EditMessage(ctx, messageID, suffix)
	}
}

func (c *Coordinator) answerExpired(ctx context.Context, callbackID string) {
	if c.chat == nil {
		return
	}
	_ = c.chat.AnswerButton(ctx, callbackID, "expired")
}

// DetailsProvider supplies the transcript summary+activity text shown when
// the Details button is pressed; implemented by pipeline from the session
// registry, transcript reader, and LLM summarizer.
type DetailsProvider interface {
	Details(ctx context.Context, sessionID string) (string, error)
}

// SetDetailsProvider wires the Details-button data source. Called once at
// bootstrap; kept as a setter rather than a constructor argument because the
// provider itself depends on the registry, transcript reader, and LLM
// summarizer, all assembled after the coordinator in the wiring order.
func (c *Coordinator) SetDetailsProvider(p DetailsProvider) { c.details = p }

// handleDetails is non-resolving: it never touches c.pending. It edits the
// original approval message so its text becomes the details text; no
// separate reply message is sent.
func (c *Coordinator) handleDetails(ctx context.Context, callbackID, id string) {
	if c.chat != nil {
		_ = c.chat.AnswerButton(ctx, callbackID, "")
	}
	c.mu.Lock()
	pa, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return
	}
	if c.details == nil {
		return
	}
	summary, err := c.details.Details(ctx, pa.sessionID)
	if err != nil {
		c.log.Warn("details lookup failed", "session_id", pa.sessionID, "error", err)
		return
	}
	if c.chat != nil && pa.messageID != "" {
		_ = c.chat.EditMessage(ctx, pa.messageID, summary)
	}
}

// OnTextReply handles an inbound text message whose reply_to_message_id
// matches a known outgoing approval message.
func (c *Coordinator) OnTextReply(ctx context.Context, replyToMessageID, text string) {
	c.mu.Lock()
	mc, ok := c.byMsg[replyToMessageID]
	c.mu.Unlock()
	if !ok {
		return
	}

	if mc.isStop {
		c.resolveOnce(mc.approvalID, Resolution{Approved: true, Reason: "User replied to agent question", PolicyText: text})
		if mc.paneID != "" && c.tmux != nil {
			_ = c.tmux.SendKeys(mc.paneID, text)
		}
		return
	}

	c.mu.Lock()
	pa := c.pending[mc.approvalID]
	c.mu.Unlock()
	toolName := ""
	if pa != nil {
		toolName = pa.toolName
	}

	if c.classifier == nil {
		c.resolveOnce(mc.approvalID, Resolution{Approved: true, PolicyText: text})
		return
	}

	eval, err := c.classifier.ClassifyReply(ctx, text, toolName, mc.label)
	if err != nil {
		// Classifier failure: fall back to approve, but keep the raw human
		// reply as a policy rather than silently discarding it.
		c.resolveOnce(mc.approvalID, Resolution{Approved: true, PolicyText: text})
		return
	}
	switch eval.Intent {
	case llm.IntentApprove:
		c.resolveOnce(mc.approvalID, Resolution{Approved: true, Reason: "Approved via Telegram"})
	case llm.IntentDeny:
		c.resolveOnce(mc.approvalID, Resolution{Approved: false, Reason: "Denied via Telegram: " + text})
	case llm.IntentForward:
		fwd := eval.ForwardText
		if fwd == "" {
			fwd = text
		}
		c.resolveOnce(mc.approvalID, Resolution{Approved: true, Reason: "Approved + forwarded text to agent"})
		if mc.paneID != "" && c.tmux != nil {
			_ = c.tmux.SendKeys(mc.paneID, fwd)
		}
	case llm.IntentAddPolicy:
		c.resolveOnce(mc.approvalID, Resolution{Approved: true, PolicyText: eval.PolicyText})
	case llm.IntentAddRule:
		c.appendRuleYAML(eval.RuleYAML)
		c.resolveOnce(mc.approvalID, Resolution{Approved: true})
	default:
		c.resolveOnce(mc.approvalID, Resolution{Approved: true, PolicyText: text})
	}
}

// RuleAppender is the minimal capability for persisting an add_rule reply's
// YAML snippet to the rules file so the watcher hot-reloads it.
type RuleAppender interface {
	AppendRuleYAML(yaml string) error
}

// SetRuleAppender wires the rules-file append side-effect, for the same
// bootstrap-ordering reason as SetDetailsProvider.
func (c *Coordinator) SetRuleAppender(a RuleAppender) { c.ruleAppend = a }

func (c *Coordinator) appendRuleYAML(yaml string) {
	if c.ruleAppend == nil || yaml == "" {
		return
	}
	if err := c.ruleAppend.AppendRuleYAML(yaml); err != nil {
		c.log.Warn("failed to append add_rule YAML", "error", err)
	}
}

func splitCallback(data string) (action, id string, ok bool) {
	for i := 0; i < len(data); i++ {
		if data[i] == ':' {
			return data[:i], data[i+1:], true
		}
	}
	return "", "", false
}

func stamp() string {
	return time.Now().Format("15:04:05")
}
