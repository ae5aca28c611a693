package matrix

// stickerWidget is the m.widgets account-data body that points a client's
// sticker picker at a hosted picker page.
type stickerWidget struct {
	Content  widgetContent `json:"content"`
	Sender   string        `json:"sender"`
	StateKey string        `json:"state_key"`
	Type     string        `json:"type"`
	ID       string        `json:"id"`
}

type widgetContent struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Name string `json:"name"`
	Data string `json:"data"`
}

func newStickerWidget(widgetURL, sender string) *stickerWidget {
	return &stickerWidget{
		Content: widgetContent{
			Type: "m.stickerpicker",
			URL:  widgetURL,
			Name: "Stickerpicker",
			Data: "",
		},
		Sender:   sender,
		StateKey: "stickerpicker",
		Type:     "m.widget",
		ID:       "stickerpicker",
	}
}
