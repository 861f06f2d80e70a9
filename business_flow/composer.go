package businessflow

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tmcarr/heimdall/models"
)

// Message composition. Every function here is pure: inputs in, body out,
// no I/O, so each variant is testable with literal values.

// PageParams carries everything needed to render a page body
type PageParams struct {
	Service    string
	Party      string
	PagedAt    time.Time
	Transcript string
	FileKey    string
	LinkPreset string
	LinkDomain string
	// CallSign personalizes the link per recipient so click tracking can
	// attribute opens; empty means no personalization.
	CallSign string
}

// ComposePage renders the body of a page notification
func ComposePage(p PageParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s PAGE\n", p.Service)
	fmt.Fprintf(&b, "%s paged on %s at %s\n",
		p.Party,
		p.PagedAt.Format("Monday, Jan 2, 2006"),
		p.PagedAt.Format("3:04 PM"),
	)
	if p.Transcript != "" {
		b.WriteString(p.Transcript)
		b.WriteString("\n\n")
	}
	b.WriteString(PageLink(p.LinkDomain, p.FileKey, p.LinkPreset, p.CallSign))
	return b.String()
}

// PageLink builds the audio link embedded in page bodies
func PageLink(domain, fileKey, linkPreset, callSign string) string {
	link := fmt.Sprintf("https://%s/?f=%s&tg=%s", domain, url.QueryEscape(fileKey), url.QueryEscape(linkPreset))
	if callSign != "" {
		link += "&cs=" + url.QueryEscape(callSign)
	}
	return link
}

// ComposeWelcome renders the activation welcome message from its fragments:
// greeting, group-type explanation, an optional paged-parties line, and the
// opt-out instructions, joined with blank lines.
func ComposeWelcome(dept models.Department, pagedParties []string) string {
	fragments := []string{
		fmt.Sprintf("Welcome to the %s text group!", dept.Name),
	}

	if dept.Type == models.GroupTypePage {
		fragments = append(fragments,
			"This number sends out PAGE notifications with a link to listen to the radio traffic. Messages you send to this number are not shared with other members.")
	} else {
		fragments = append(fragments,
			"This number sends out PAGE notifications and department texts. Messages you send to this number are shared with the whole group.")
	}

	if len(pagedParties) > 0 {
		fragments = append(fragments,
			fmt.Sprintf("You will receive pages for: %s", strings.Join(pagedParties, ", ")))
	}

	fragments = append(fragments, "To opt out of these messages, reply STOP at any time.")

	return strings.Join(fragments, "\n\n")
}

// ComposeDepartmentText renders a peer message or an admin announcement.
// Peer messages lead with the sender's identity; announcements lead with the
// department label and append the sender attribution instead.
func ComposeDepartmentText(dept models.Department, body, senderName, callSign string, announcement bool) string {
	sender := senderName
	if callSign != "" {
		sender = fmt.Sprintf("%s (%s)", senderName, callSign)
	}
	if announcement {
		return fmt.Sprintf("%s Announcement: %s - %s", dept.ShortName, body, sender)
	}
	return fmt.Sprintf("%s: %s", sender, body)
}

// ComposeTranscriptNotice renders the standalone transcript notification used
// when no page record exists for the transcribed file
func ComposeTranscriptNotice(tg models.Talkgroup, transcript, linkDomain string) string {
	return fmt.Sprintf(
		"Transcript for %s:\n\n%s\n\nListen to live traffic at https://%s/audio?tg=%s",
		tg.PartyName, transcript, linkDomain, url.QueryEscape(tg.LinkPreset),
	)
}

// ComposeLoginCode renders the one-time login code text
func ComposeLoginCode(code string) string {
	return fmt.Sprintf("Your login code is %s. It expires in 10 minutes. Do not share this code with anyone.", code)
}

// ComposeEscalation renders the admin alert raised for sustained delivery
// failure to one member
func ComposeEscalation(name, phone string, failCount int) string {
	return fmt.Sprintf("Messages to %s (%s) have failed %d times in a row. They may have opted out or changed numbers.", name, phone, failCount)
}

// ComposeNotSubscribed is the reply for inbound texts from unknown or
// inactive senders
func ComposeNotSubscribed() string {
	return "You are not subscribed to this group. Visit the website to sign up."
}

// ComposeAmbiguous is the reply when a multi-department sender cannot be
// attributed to a single department
func ComposeAmbiguous() string {
	return "You belong to more than one department on this channel. Please use the website to send this message."
}

// ComposeTooLong is the reply for inbound bodies over the broadcast limit
func ComposeTooLong(limit int) string {
	return fmt.Sprintf("Your message is too long to broadcast (limit %d characters). Please shorten it and try again.", limit)
}
