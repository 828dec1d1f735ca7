package tradier

import "encoding/json"

// The API collapses single-element arrays into bare objects. The list
// wrappers below accept both forms.

type optionDTO struct {
	Symbol         string    `json:"symbol"`
	Underlying     string    `json:"underlying"`
	Strike         float64   `json:"strike"`
	ExpirationDate string    `json:"expiration_date"`
	OptionType     string    `json:"option_type"` // "call" or "put"
	Bid            float64   `json:"bid"`
	Ask            float64   `json:"ask"`
	Last           float64   `json:"last"`
	BidSize        int64     `json:"bidsize"`
	AskSize        int64     `json:"asksize"`
	Volume         int64     `json:"volume"`
	OpenInterest   int64     `json:"open_interest"`
	Greeks         *greekDTO `json:"greeks"`
}

type greekDTO struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
	MidIV float64 `json:"mid_iv"`
	BidIV float64 `json:"bid_iv"`
	AskIV float64 `json:"ask_iv"`
}

type optionList []optionDTO

func (l *optionList) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, (*[]optionDTO)(l))
	}
	var one optionDTO
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*l = optionList{one}
	return nil
}

type chainResponse struct {
	Options *struct {
		Option optionList `json:"option"`
	} `json:"options"`
}

type expirationsResponse struct {
	Expirations *struct {
		Date stringList `json:"date"`
	} `json:"expirations"`
}

type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, (*[]string)(l))
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*l = stringList{one}
	return nil
}

type quoteDTO struct {
	Symbol           string  `json:"symbol"`
	Last             float64 `json:"last"`
	Change           float64 `json:"change"`
	ChangePercentage float64 `json:"change_percentage"`
	Open             float64 `json:"open"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
	PrevClose        float64 `json:"prevclose"`
	Bid              float64 `json:"bid"`
	Ask              float64 `json:"ask"`
	Volume           int64   `json:"volume"`
}

type quoteList []quoteDTO

func (l *quoteList) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, (*[]quoteDTO)(l))
	}
	var one quoteDTO
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*l = quoteList{one}
	return nil
}

type quotesResponse struct {
	Quotes *struct {
		Quote quoteList `json:"quote"`
	} `json:"quotes"`
}

type timesalePoint struct {
	Timestamp int64   `json:"timestamp"` // unix seconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
	VWAP      float64 `json:"vwap"`
}

type timesalesResponse struct {
	Series *struct {
		Data []timesalePoint `json:"data"`
	} `json:"series"`
}

type historyDay struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

type historyResponse struct {
	History *struct {
		Day []historyDay `json:"day"`
	} `json:"history"`
}

// streamEvent is one frame from the markets event stream.
type streamEvent struct {
	Type   string  `json:"type"` // "quote", "trade", "summary"
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Price  float64 `json:"price"`
	Size   int64   `json:"size"`
	Volume int64   `json:"cvol"`
}
