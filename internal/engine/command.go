package engine

type CommandType string

const (
	CmdJoin              CommandType = "Join"
	CmdReconnect         CommandType = "Reconnect"
	CmdDisconnect        CommandType = "Disconnect"
	CmdLeave             CommandType = "Leave"
	CmdKick              CommandType = "Kick"
	CmdPromoteAdmin      CommandType = "PromoteAdmin"
	CmdSetAdminSecret    CommandType = "SetAdminSecret"
	CmdClaimAdmin        CommandType = "ClaimAdmin"
	CmdChangeName        CommandType = "ChangeName"
	CmdSetAvatar         CommandType = "SetAvatar"
	CmdUploadCard        CommandType = "UploadCard"
	CmdDeleteCard        CommandType = "DeleteCard"
	CmdLockPool          CommandType = "LockPool"
	CmdUnlockPool        CommandType = "UnlockPool"
	CmdSetUploadMode     CommandType = "SetUploadMode"
	CmdSetWinTarget      CommandType = "SetWinTarget"
	CmdSetBoard          CommandType = "SetBoard"
	CmdStartGame         CommandType = "StartGame"
	CmdStorytellerSubmit CommandType = "StorytellerSubmit"
	CmdPlayerSubmit      CommandType = "PlayerSubmit"
	CmdVote              CommandType = "Vote"
	CmdAdvanceRound      CommandType = "AdvanceRound"
	CmdResetGame         CommandType = "ResetGame"
	CmdNewDeck           CommandType = "NewDeck"
	CmdRepairHand        CommandType = "RepairHand"
)

// Command is one client request. PlayerID is the authenticated actor; the
// other fields are read according to Type.
type Command struct {
	Type       CommandType
	PlayerID   string
	TargetID   string
	CardID     string
	Clue       string
	Name       string
	Secret     string
	Avatar     string
	Image      []byte
	UploadMode UploadMode
	WinTarget  int
	Board      BoardSettings

	// Reserve makes a Join seat the player disconnected until they reconnect.
	Reserve bool
}

type EventType string

const (
	EvtPlayerJoined       EventType = "PlayerJoined"
	EvtPlayerReconnected  EventType = "PlayerReconnected"
	EvtPlayerDisconnected EventType = "PlayerDisconnected"
	EvtPlayerLeft         EventType = "PlayerLeft"
	EvtPlayerKicked       EventType = "PlayerKicked"
	EvtAdminChanged       EventType = "AdminChanged"
	EvtSecretSet          EventType = "SecretSet"
	EvtProfileChanged     EventType = "ProfileChanged"
	EvtCardUploaded       EventType = "CardUploaded"
	EvtCardDeleted        EventType = "CardDeleted"
	EvtCardsTransferred   EventType = "CardsTransferred"
	EvtPoolLocked         EventType = "PoolLocked"
	EvtPoolUnlocked       EventType = "PoolUnlocked"
	EvtSettingsChanged    EventType = "SettingsChanged"
	EvtGameStarted        EventType = "GameStarted"
	EvtCardSubmitted      EventType = "CardSubmitted"
	EvtVoteCast           EventType = "VoteCast"
	EvtPhaseChanged       EventType = "PhaseChanged"
	EvtScoresApplied      EventType = "ScoresApplied"
	EvtRoundStarted       EventType = "RoundStarted"
	EvtRoundAborted       EventType = "RoundAborted"
	EvtGameEnded          EventType = "GameEnded"
	EvtGameReset          EventType = "GameReset"
	EvtDeckCleared        EventType = "DeckCleared"
	EvtHandRepaired       EventType = "HandRepaired"
)

// Event records one state change. Clients receive them alongside snapshots.
type Event struct {
	Type     EventType `json:"type"`
	PlayerID string    `json:"player_id,omitempty"`
	CardID   string    `json:"card_id,omitempty"`
	Phase    Phase     `json:"phase,omitempty"`
	Round    int       `json:"round,omitempty"`
}

// Apply routes a command to the matching Session operation.
func (s *Session) Apply(cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdJoin:
		if cmd.Reserve {
			return s.ReservePlayer(cmd.PlayerID, cmd.Name)
		}
		return s.AddPlayer(cmd.PlayerID, cmd.Name)
	case CmdReconnect:
		return s.ReconnectPlayer(cmd.PlayerID)
	case CmdDisconnect:
		return s.RemovePlayer(cmd.PlayerID)
	case CmdLeave:
		return s.LeavePlayer(cmd.PlayerID)
	case CmdKick:
		return s.KickPlayer(cmd.PlayerID, cmd.TargetID)
	case CmdPromoteAdmin:
		return s.PromoteAdmin(cmd.PlayerID, cmd.TargetID)
	case CmdSetAdminSecret:
		return s.SetAdminSecret(cmd.PlayerID, cmd.Secret)
	case CmdClaimAdmin:
		return s.ClaimAdmin(cmd.PlayerID, cmd.Secret)
	case CmdChangeName:
		return s.ChangeName(cmd.PlayerID, cmd.Name)
	case CmdSetAvatar:
		return s.SetTokenImage(cmd.PlayerID, cmd.Avatar)
	case CmdUploadCard:
		_, events, err := s.UploadCard(cmd.PlayerID, cmd.Image)
		return events, err
	case CmdDeleteCard:
		_, events, err := s.DeleteCard(cmd.PlayerID, cmd.CardID)
		return events, err
	case CmdLockPool:
		return s.LockPool(cmd.PlayerID)
	case CmdUnlockPool:
		return s.UnlockPool(cmd.PlayerID)
	case CmdSetUploadMode:
		return s.SetUploadMode(cmd.PlayerID, cmd.UploadMode)
	case CmdSetWinTarget:
		return s.SetWinTarget(cmd.PlayerID, cmd.WinTarget)
	case CmdSetBoard:
		return s.SetBoardDisplaySettings(cmd.PlayerID, cmd.Board)
	case CmdStartGame:
		return s.StartGame(cmd.PlayerID)
	case CmdStorytellerSubmit:
		return s.StorytellerSubmit(cmd.PlayerID, cmd.CardID, cmd.Clue)
	case CmdPlayerSubmit:
		return s.PlayerSubmit(cmd.PlayerID, cmd.CardID)
	case CmdVote:
		return s.PlayerVote(cmd.PlayerID, cmd.CardID)
	case CmdAdvanceRound:
		return s.AdvanceRound(cmd.PlayerID)
	case CmdResetGame:
		return s.ResetGame(cmd.PlayerID)
	case CmdNewDeck:
		return s.NewDeck(cmd.PlayerID)
	case CmdRepairHand:
		return s.RepairHand(cmd.PlayerID)
	default:
		return nil, ErrUnsupportedCommand.with("type", string(cmd.Type))
	}
}
