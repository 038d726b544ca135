package hooks

import "encoding/json"

func handleSync(client *Client, data []byte) error {
	tabs, err := decodeTabs(data)
	if err != nil {
		return err
	}
	body, err := json.Marshal(tabs)
	if err != nil {
		return err
	}
	_, err = client.Put("/api/tabs", body)
	return err
}

func handleTab(client *Client, event string, data []byte) error {
	d, err := decodeTab(data)
	if err != nil {
		return err
	}
	if ShouldSkipTab(d) {
		return nil
	}

	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = client.Post("/api/events/"+event, body)
	return err
}
