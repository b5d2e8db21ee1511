package bot

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/facebookresearch/Hanabi-SPARTA/move"
)

// Request asks a bot for the move of Seat in the game dealt from Seed,
// after Moves. The bot only sees the view of Seat.
type Request struct {
	GameID   string
	Bot      string
	Seed     int64
	Players  int
	HandSize int
	Seat     int
	Moves    []move.Move
}

// Response carries the move, or an error message.
type Response struct {
	GameID string
	Move   move.Move
	Error  string
}

// Requests and responses travel as protobuf Structs. Seeds are strings;
// Struct numbers are doubles.

func (r *Request) Marshal() ([]byte, error) {
	moves := make([]interface{}, len(r.Moves))
	for i, m := range r.Moves {
		moves[i] = m.ShortDescription()
	}
	s, err := structpb.NewStruct(map[string]interface{}{
		"gameId":   r.GameID,
		"bot":      r.Bot,
		"seed":     strconv.FormatInt(r.Seed, 10),
		"players":  r.Players,
		"handSize": r.HandSize,
		"seat":     r.Seat,
		"moves":    moves,
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func UnmarshalRequest(data []byte) (*Request, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		return nil, err
	}
	f := s.GetFields()
	seed, err := strconv.ParseInt(f["seed"].GetStringValue(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad seed: %w", err)
	}
	r := &Request{
		GameID:   f["gameId"].GetStringValue(),
		Bot:      f["bot"].GetStringValue(),
		Seed:     seed,
		Players:  int(f["players"].GetNumberValue()),
		HandSize: int(f["handSize"].GetNumberValue()),
		Seat:     int(f["seat"].GetNumberValue()),
	}
	for i, v := range f["moves"].GetListValue().GetValues() {
		m, err := move.FromString(v.GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i, err)
		}
		r.Moves = append(r.Moves, m)
	}
	return r, nil
}

func (r *Response) Marshal() ([]byte, error) {
	fields := map[string]interface{}{"gameId": r.GameID}
	if r.Error != "" {
		fields["error"] = r.Error
	} else {
		fields["move"] = r.Move.ShortDescription()
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func UnmarshalResponse(data []byte) (*Response, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		return nil, err
	}
	f := s.GetFields()
	r := &Response{
		GameID: f["gameId"].GetStringValue(),
		Error:  f["error"].GetStringValue(),
	}
	if r.Error != "" {
		return r, nil
	}
	m, err := move.FromString(f["move"].GetStringValue())
	if err != nil {
		return nil, err
	}
	r.Move = m
	return r, nil
}
