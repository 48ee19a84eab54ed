package roads

import "time"

// Lot is an administrative subdivision of the network under one contract.
type Lot struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Region      string    `json:"region"`
	CreatedAt   time.Time `json:"created_at"`
}

type LotInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Region      string `json:"region"`
}

func (in *LotInput) Normalize() error {
	in.Name = clean(in.Name)
	in.Description = clean(in.Description)
	in.Region = clean(in.Region)
	if in.Name == "" {
		return Invalid("name is required")
	}
	return nil
}
