package models

// Stable card codes. These are wire identifiers; gameplay dispatch goes
// through EffectKind and the set-validation tables, never through these
// strings.
const (
	// Detective cards.
	CodeEye    = "D_EYE"   // Private Eye
	CodeDog    = "D_DOG"   // Bloodhound
	CodeCamera = "D_CAM"   // Photographer
	CodeBadge  = "D_BADGE" // Inspector's Badge
	CodeCuffs  = "D_CUFFS" // Handcuffs
	CodeSquad  = "D_SQUAD" // Beat Cop
	CodeWild   = "D_WILD"  // Master Sleuth (wildcard)

	// Event cards.
	CodeAshes   = "E_ASH"   // From the Ashes
	CodePurge   = "E_PURGE" // Burn the Evidence
	CodeCold    = "E_COLD"  // Cold Case
	CodeRaid    = "E_RAID"  // Search Warrant
	CodeLiar    = "E_LIA"   // Liar!
	CodePoach   = "E_POACH" // Poach the Case
	CodeTrade   = "E_SWAP"  // Under the Table
	CodeAlibi   = "E_ALIBI" // Airtight Alibi (defensive, no active effect)

	// Devious cards.
	CodeBlackmail  = "X_BLACKMAIL" // Blackmail
	CodeForcedPass = "X_PASS"      // Pass the Buck
)

// CardSpec describes one catalog entry and how many copies the deck holds.
type CardSpec struct {
	Code        string
	Kind        CardKind
	Name        string
	Description string
	Effect      EffectKind
	Copies      int

	// StartsInHand marks cards distributed one per player in the first
	// pass of the opening deal.
	StartsInHand bool
}

// Catalog returns the full deck composition in a stable order.
func Catalog() []CardSpec {
	return []CardSpec{
		{Code: CodeEye, Kind: KindDetective, Name: "Private Eye", Description: "Pairs with another Private Eye.", Copies: 8},
		{Code: CodeDog, Kind: KindDetective, Name: "Bloodhound", Description: "Pairs with another Bloodhound.", Copies: 8},
		{Code: CodeCamera, Kind: KindDetective, Name: "Photographer", Description: "A pair buries a secret back in the dark.", Copies: 6},
		{Code: CodeBadge, Kind: KindDetective, Name: "Inspector's Badge", Description: "Combines with Handcuffs for an arrest.", Copies: 4},
		{Code: CodeCuffs, Kind: KindDetective, Name: "Handcuffs", Description: "Combines with the Inspector's Badge for an arrest.", Copies: 4},
		{Code: CodeSquad, Kind: KindDetective, Name: "Beat Cop", Description: "Three form a task force.", Copies: 9},
		{Code: CodeWild, Kind: KindDetective, Name: "Master Sleuth", Description: "Stands in for any single detective when forming a set.", Copies: 3},

		{Code: CodeAshes, Kind: KindEvent, Name: "From the Ashes", Description: "Retrieve one of the five most recent discards.", Effect: EffectAshesRetrieval, Copies: 3},
		{Code: CodePurge, Kind: KindEvent, Name: "Burn the Evidence", Description: "Discard the top six cards of the deck, then remove this card from the game.", Effect: EffectDeckPurge, Copies: 2},
		{Code: CodeCold, Kind: KindEvent, Name: "Cold Case", Description: "Return the five most recent discards to the deck, then remove this card from the game.", Effect: EffectDiscardRecycle, Copies: 2},
		{Code: CodeRaid, Kind: KindEvent, Name: "Search Warrant", Description: "A target player discards every Airtight Alibi in their hand.", Effect: EffectStripDefenses, Copies: 3},
		{Code: CodeLiar, Kind: KindEvent, Name: "Liar!", Description: "Hide a revealed secret and hand it to another player.", Effect: EffectSecretTransfer, Copies: 2},
		{Code: CodePoach, Kind: KindEvent, Name: "Poach the Case", Description: "Take over another player's set.", Effect: EffectSetTransfer, Copies: 2},
		{Code: CodeTrade, Kind: KindEvent, Name: "Under the Table", Description: "Trade one card with another player.", Effect: EffectCardTrade, Copies: 3},
		{Code: CodeAlibi, Kind: KindEvent, Name: "Airtight Alibi", Description: "Shields you from accusations while it stays in hand.", Copies: 5},

		{Code: CodeBlackmail, Kind: KindDevious, Name: "Blackmail", Description: "Whoever takes this learns you can expose their secrets.", Effect: EffectBlackmail, Copies: 3, StartsInHand: true},
		{Code: CodeForcedPass, Kind: KindDevious, Name: "Pass the Buck", Description: "Whoever takes this must respond before play continues.", Effect: EffectForcedPass, Copies: 3, StartsInHand: true},
	}
}
