package main

import "encoding/json"

// demoSeed mirrors a typical Ontario restaurant: 5% GST, 8% PST and a
// 200 points = $5 loyalty program with a 100 point minimum.
func demoSeed() seedFile {
	raw := []byte(`{"restaurants":[{
		"settings": {
			"restaurantId": "demo",
			"tax": {
				"gst": {"enabled": true, "taxRate": "5"},
				"pst": {"enabled": true, "taxRate": "8"},
				"hst": {"enabled": false, "taxRate": "0"}
			},
			"loyalty": {"enabled": true, "minRedeemPoints": 100, "redeemRate": 200, "redeemValue": "5", "earnRate": "1"},
			"currency": {"code": "CAD", "symbol": "$"}
		},
		"customers": [
			{"id": "6f1c1f36-2b1f-4d38-9a8e-2f0a3c8c9d11", "name": "Regular", "points": 500},
			{"id": "0b8f5a2e-7c44-4f1e-9d0b-5a3e2c1d4f60", "name": "Newcomer", "points": 0}
		]
	}]}`)
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		panic(err)
	}
	return seed
}
