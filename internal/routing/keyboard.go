package routing

import (
	"mod-gobot/internal/platform"
	"mod-gobot/internal/sanitize"
)

const (
	allChatsLabel       = "[ALL CHATS]"
	allLinkedChatsLabel = "[ALL LINKED CHATS]"
)

// BuildKeyboard renders one row per candidate, led by the all-chats
// button. With an empty command the buttons refer to the pending cache;
// otherwise every button carries the command itself.
func BuildKeyboard(cands []Candidate, control bool, command string) (platform.Keyboard, error) {
	label := allChatsLabel
	if control {
		label = allLinkedChatsLabel
	}

	kb := make(platform.Keyboard, 0, len(cands)+1)

	all, err := RouteButton(label, AllChats, command)
	if err != nil {
		return nil, err
	}
	kb = append(kb, []platform.Button{all})

	for _, c := range cands {
		b, err := RouteButton(sanitize.ButtonLabel(c.Title), c.ChatID, command)
		if err != nil {
			return nil, err
		}
		kb = append(kb, []platform.Button{b})
	}
	return kb, nil
}

// RouteButton builds one routing button. An empty command makes the
// button refer to the pending cache.
func RouteButton(label string, chatID int64, command string) (platform.Button, error) {
	data, err := Token{ChatID: chatID, Command: command}.EncodeLimited()
	if err != nil {
		return platform.Button{}, err
	}
	return platform.Button{Label: label, Unique: UniqueRoute, Data: data}, nil
}
