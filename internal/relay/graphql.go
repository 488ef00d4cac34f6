package relay

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/eneris/battlemap/internal/battlemap"
	. "github.com/eneris/battlemap/internal/logging"
)

type schemaHolder struct {
	schema graphql.Schema
}

// jsonScalar passes untyped response payloads (cores, mines, cluster
// profiles, raw relay responses) through the schema unmodified.
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:         "JSON",
	Description:  "Arbitrary JSON value",
	Serialize:    func(v interface{}) interface{} { return v },
	ParseValue:   func(v interface{}) interface{} { return v },
	ParseLiteral: parseJSONLiteral,
})

func parseJSONLiteral(v ast.Value) interface{} {
	switch v := v.(type) {
	case *ast.StringValue:
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.IntValue:
		n, _ := strconv.Atoi(v.Value)
		return n
	case *ast.FloatValue:
		f, _ := strconv.ParseFloat(v.Value, 64)
		return f
	case *ast.ListValue:
		out := make([]interface{}, len(v.Values))
		for i, item := range v.Values {
			out[i] = parseJSONLiteral(item)
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(v.Fields))
		for _, f := range v.Fields {
			out[f.Name.Value] = parseJSONLiteral(f.Value)
		}
		return out
	default:
		return nil
	}
}

func int64Arg(p graphql.ResolveParams, name string) int64 {
	if n, ok := p.Args[name].(int); ok {
		return int64(n)
	}
	return 0
}

func floatArg(p graphql.ResolveParams, name string, fallback float64) float64 {
	switch v := p.Args[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

func intArg(p graphql.ResolveParams, name string, fallback int) int {
	if n, ok := p.Args[name].(int); ok {
		return n
	}
	return fallback
}

// mapSearchArgs are the bounding-box arguments shared by the map list
// queries. Defaults cover the whole map.
var mapSearchArgs = graphql.FieldConfigArgument{
	"latMin":    &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: -200.0},
	"lngMin":    &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: -200.0},
	"latMax":    &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 200.0},
	"lngMax":    &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 200.0},
	"faction":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
	"minLevel":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
	"maxLevel":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 99},
	"minHealth": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
	"maxHealth": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
	"lastId":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
}

func searchFromArgs(p graphql.ResolveParams) battlemap.MapSearch {
	return battlemap.MapSearch{
		LatMin:    floatArg(p, "latMin", -200),
		LngMin:    floatArg(p, "lngMin", -200),
		LatMax:    floatArg(p, "latMax", 200),
		LngMax:    floatArg(p, "lngMax", 200),
		Faction:   intArg(p, "faction", 0),
		MinLevel:  intArg(p, "minLevel", 0),
		MaxLevel:  intArg(p, "maxLevel", 99),
		MinHealth: intArg(p, "minHealth", 0),
		MaxHealth: intArg(p, "maxHealth", 100),
		LastID:    int64Arg(p, "lastId"),
	}
}

func (s *Server) buildSchema() (*schemaHolder, error) {
	baseType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Base",
		Fields: graphql.Fields{
			"id":        {Type: graphql.Int},
			"name":      {Type: graphql.String},
			"faction":   {Type: graphql.Int},
			"health":    {Type: graphql.Float},
			"latitude":  {Type: graphql.Float},
			"longitude": {Type: graphql.Float},
			"level_id":  {Type: graphql.Int},
			"owner_id":  {Type: graphql.Int},
		},
	})

	baseDetailType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BaseDetail",
		Fields: graphql.Fields{
			"bs_id":   {Type: graphql.Int},
			"bs_hsid": {Type: graphql.String},
			"nm":      {Type: graphql.String},
			"ownr":    {Type: graphql.String},
			"cr_nm":   {Type: graphql.String},
			"lvl":     {Type: graphql.Int},
			"hth":     {Type: graphql.Float},
			"mx_hth":  {Type: graphql.Int},
			"lat":     {Type: graphql.Float},
			"lng":     {Type: graphql.Float},
			"strngth": {Type: graphql.Int},
			"av_pwr":  {Type: graphql.Int},
			"us_pwr":  {Type: graphql.Int},
			"bf":      {Type: graphql.Int},
			"del":     {Type: graphql.Boolean},
			"mltng":   {Type: graphql.Boolean},
			"tc_gen":  {Type: graphql.Boolean},
			"tm_gen":  {Type: graphql.Boolean},
			"bs_lnks": {Type: jsonScalar},
			"cr_lnks": {Type: jsonScalar},
			"rings":   {Type: jsonScalar},
		},
	})

	battleDetailType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BattleDetail",
		Fields: graphql.Fields{
			"id":                     {Type: graphql.Int},
			"attack_on":              {Type: graphql.String},
			"initiated_by_id":        {Type: graphql.Int},
			"initiated_on":           {Type: graphql.String},
			"is_cancelled":           {Type: graphql.Int},
			"is_done":                {Type: graphql.Int},
			"unique_name":            {Type: graphql.String},
			"dominance":              {Type: jsonScalar},
			"own_base":               {Type: graphql.String},
			"own_base_name":          {Type: graphql.String},
			"own_base_fac_enum":      {Type: graphql.Int},
			"own_base_final_profit":  {Type: graphql.Int},
			"ownClusterStrength":     {Type: graphql.Int},
			"oppo_base":              {Type: graphql.String},
			"oppo_base_name":         {Type: graphql.String},
			"oppo_base_fac_enum":     {Type: graphql.Int},
			"oppo_base_final_profit": {Type: graphql.Int},
			"oppoClusterStrength":    {Type: graphql.Int},
			"reservedPower":          {Type: graphql.Int},
			"winner_fac_enum":        {Type: jsonScalar},
			"own_base_detail": {
				Type: baseDetailType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					detail, ok := p.Source.(*battlemap.BattleDetail)
					if !ok || detail.OwnBaseName == "" {
						return nil, nil
					}
					return s.baseDetailByName(p, detail.OwnBaseName)
				},
			},
			"oppo_base_detail": {
				Type: baseDetailType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					detail, ok := p.Source.(*battlemap.BattleDetail)
					if !ok || detail.OppoBaseName == "" {
						return nil, nil
					}
					return s.baseDetailByName(p, detail.OppoBaseName)
				},
			},
		},
	})

	battleType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Battle",
		Fields: graphql.Fields{
			"id":             {Type: graphql.Int},
			"battleUniqueID": {Type: graphql.String},
			"currentCycle":   {Type: graphql.Int},
			"factionEnum":    {Type: graphql.Int},
			"finished":       {Type: graphql.Int},
			"oppoBase":       {Type: graphql.String},
			"ownBase":        {Type: graphql.String},
			"reservedPower":  {Type: graphql.Int},
			"resolutionTime": {Type: graphql.String},
			"detail": {
				Type: battleDetailType,
				// Resolved battles keep their list row only; the profile
				// endpoint rejects finished battle ids.
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					b, ok := p.Source.(battlemap.Battle)
					if !ok {
						return nil, nil
					}
					if b.Finished != 0 {
						return nil, nil
					}
					return s.session.GetBattleDetail(p.Context, b.ID)
				},
			},
		},
	})

	playerDetailType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PlayerDetail",
		Fields: graphql.Fields{
			"id":                  {Type: graphql.Int},
			"uname":               {Type: graphql.String},
			"faction_id":          {Type: graphql.Int},
			"base_level":          {Type: graphql.Int},
			"level_id":            {Type: graphql.Int},
			"get_core_info":       {Type: jsonScalar},
			"get_stats_public":    {Type: jsonScalar},
			"get_poi_info":        {Type: jsonScalar},
			"get_faction_details": {Type: jsonScalar},
			"base": {
				Type: baseDetailType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					player, ok := p.Source.(*battlemap.PlayerDetail)
					if !ok {
						return nil, nil
					}
					return s.session.GetPlayerBase(p.Context, player.ID)
				},
			},
			"base_unique_id": {
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					player, ok := p.Source.(*battlemap.PlayerDetail)
					if !ok {
						return nil, nil
					}
					return s.playerBaseUniqueID(p, player.ID)
				},
			},
		},
	})

	searchResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SearchResult",
		Fields: graphql.Fields{
			"id":      {Type: graphql.Int},
			"name":    {Type: graphql.String},
			"faction": {Type: graphql.Int},
			"type":    {Type: graphql.String},
		},
	})

	idArg := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"battles": {
				Type: graphql.NewList(battleType),
				Args: graphql.FieldConfigArgument{
					"factions":   &graphql.ArgumentConfig{Type: graphql.NewList(graphql.Int)},
					"resolution": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var factions []int
					if raw, ok := p.Args["factions"].([]interface{}); ok {
						for _, v := range raw {
							if n, ok := v.(int); ok {
								factions = append(factions, n)
							}
						}
					}
					return s.session.GetBattles(p.Context, factions, intArg(p, "resolution", 0))
				},
			},
			"battleDetail": {
				Type: battleDetailType,
				Args: idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return s.session.GetBattleDetail(p.Context, int64Arg(p, "id"))
				},
			},
			"bases": {
				Type: graphql.NewList(baseType),
				Args: mapSearchArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return s.session.GetBases(p.Context, searchFromArgs(p))
				},
			},
			"cores": {
				Type: jsonScalar,
				Args: mapSearchArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return s.session.GetCores(p.Context, searchFromArgs(p))
				},
			},
			"mines": {
				Type: jsonScalar,
				Args: mapSearchArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return s.session.GetMines(p.Context, searchFromArgs(p))
				},
			},
			"baseDetail": {
				Type: baseDetailType,
				Args: idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return s.session.GetBaseDetail(p.Context, int64Arg(p, "id"))
				},
			},
			"playerDetail": {
				Type: playerDetailType,
				Args: idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return s.session.GetPlayerDetail(p.Context, int64Arg(p, "id"))
				},
			},
			"clusterDetail": {
				Type: jsonScalar,
				Args: graphql.FieldConfigArgument{
					"id":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"type": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					clusterType, _ := p.Args["type"].(string)
					return s.session.GetClusterDetail(p.Context, int64Arg(p, "id"), clusterType)
				},
			},
			"coreDetail": {
				Type: jsonScalar,
				Args: idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return s.session.GetCoreDetail(p.Context, int64Arg(p, "id"))
				},
			},
			"mineDetail": {
				Type: jsonScalar,
				Args: idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return s.session.GetMineDetail(p.Context, int64Arg(p, "id"))
				},
			},
			"search": {
				Type: graphql.NewList(searchResultType),
				Args: graphql.FieldConfigArgument{
					"term":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"faction": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					term, _ := p.Args["term"].(string)
					return s.session.GetSearchQuery(p.Context, term, intArg(p, "faction", 0))
				},
			},
			"request": {
				Type: jsonScalar,
				Args: graphql.FieldConfigArgument{
					"operation": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"query":     &graphql.ArgumentConfig{Type: jsonScalar},
					"method":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: "post"},
					"filter":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					operation, _ := p.Args["operation"].(string)
					method, _ := p.Args["method"].(string)
					query, _ := p.Args["query"].(map[string]interface{})

					resp, err := s.session.GetAPIData(p.Context, operation, query, method)
					if err != nil {
						return nil, err
					}
					if expr, _ := p.Args["filter"].(string); expr != "" {
						return applyFilter(expr, resp)
					}
					return resp, nil
				},
			},
			"playerBaseUniqueId": {
				Type: graphql.String,
				Args: idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return s.playerBaseUniqueID(p, int64Arg(p, "id"))
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"restart": {
				Type: graphql.Boolean,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					L_info("relay: restart requested via graphql")
					if err := s.session.Init(p.Context, nil); err != nil {
						return false, err
					}
					return true, nil
				},
			},
			"sendMessage": {
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"message": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"global":  &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					message, _ := p.Args["message"].(string)
					global, _ := p.Args["global"].(bool)
					if err := s.session.SendMessage(p.Context, message, global); err != nil {
						return false, err
					}
					return true, nil
				},
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
	if err != nil {
		return nil, err
	}
	return &schemaHolder{schema: schema}, nil
}

// baseDetailByName resolves a base profile from its display name via search.
func (s *Server) baseDetailByName(p graphql.ResolveParams, name string) (interface{}, error) {
	id, err := s.session.GetIDFromQuery(p.Context, name)
	if err != nil {
		return nil, err
	}
	return s.session.GetBaseDetail(p.Context, id)
}

// playerBaseUniqueID prefers the mirror, falling back to a live lookup.
func (s *Server) playerBaseUniqueID(p graphql.ResolveParams, playerID int64) (interface{}, error) {
	if s.mirror != nil {
		if uid, err := s.mirror.PlayerBaseUniqueID(playerID); err == nil && uid != "" {
			return uid, nil
		}
	}
	return s.session.GetPlayerBaseUniqueID(p.Context, playerID)
}

// graphqlRequest is the standard POST body.
type graphqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req graphqlRequest
	switch r.Method {
	case http.MethodGet:
		req.Query = r.URL.Query().Get("query")
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid request body"})
			return
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "query is required"})
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         s.schema.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        r.Context(),
	})
	writeJSON(w, http.StatusOK, result)
}
