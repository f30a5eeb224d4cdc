package main

import "time"

const clockTowerCaseID = "clock-tower"

func witchTrialCast() []Character {
	return []Character{
		{
			ID:          "emma",
			Name:        "Emma Sakuraba",
			Personality: "Earnest and kind, trusts people easily but refuses to let an injustice stand.",
			SpeakStyle:  "Plain and direct, asks short questions.",
			Color:       "#f4a7b9",
			IsPlayer:    true,
		},
		{
			ID:          "reia",
			Name:        "Reia Hasuna",
			Personality: "The idol of the academy, cheerful in public and lonely in private.",
			SpeakStyle:  "Bright and theatrical.",
			Color:       "#ffd166",
		},
		{
			ID:          "hiro",
			Name:        "Hiro Nikaido",
			Personality: "Proud, strict and fiercely righteous. Hates being doubted.",
			SpeakStyle:  "Formal and clipped, corrects other people's wording.",
			Color:       "#3d5a80",
		},
		{
			ID:          "hanna",
			Name:        "Hanna Toono",
			Personality: "Gentle and anxious, cries easily, deeply attached to Reia.",
			SpeakStyle:  "Hesitant, trails off mid-sentence.",
			Color:       "#c8b6ff",
		},
		{
			ID:          "sherii",
			Name:        "Sherii Tachibana",
			Personality: "Energetic and nosy, loves detective stories and blurts things out.",
			SpeakStyle:  "Fast and excited, lots of exclamations.",
			Color:       "#ff8fab",
		},
		{
			ID:          "coco",
			Name:        "Coco Sawatari",
			Personality: "Sharp-tongued apothecary who guards her reputation above all.",
			SpeakStyle:  "Sarcastic, answers questions with questions.",
			Color:       "#52b788",
		},
		{
			ID:          "anan",
			Name:        "Anan Natsume",
			Personality: "Quiet observer who notices small things and rarely volunteers them.",
			SpeakStyle:  "Soft-spoken, short sentences.",
			Color:       "#a3c4f3",
		},
		{
			ID:          "noah",
			Name:        "Noah Shirosaki",
			Personality: "Dreamy painter, polite and distant, protective of the people she loves.",
			SpeakStyle:  "Calm and poetic, describes colours and light.",
			Color:       "#e9edc9",
		},
		{
			ID:          "millia",
			Name:        "Millia Saeki",
			Personality: "Timid senior who wants everyone to get along.",
			SpeakStyle:  "Apologetic, hedges every claim.",
			Color:       "#ffcad4",
		},
		{
			ID:          "arisa",
			Name:        "Arisa Shiko",
			Personality: "Rebellious loner who knows more about witches than she admits.",
			SpeakStyle:  "Blunt and rude, clicks her tongue.",
			Color:       "#6d597a",
		},
		{
			ID:          "nayeka",
			Name:        "Nayeka Kurobe",
			Personality: "Composed and clinical, the first to reach the body.",
			SpeakStyle:  "Measured, lists facts in order.",
			Color:       "#1b263b",
		},
		{
			ID:          "margo",
			Name:        "Margo Hojo",
			Personality: "Self-appointed organiser who likes procedure and lists.",
			SpeakStyle:  "Businesslike, addresses people by full name.",
			Color:       "#bc6c25",
		},
		{
			ID:          "meruru",
			Name:        "Meruru Hikami",
			Personality: "Shy healer who apologises for everything.",
			SpeakStyle:  "Whispering, nervous.",
			Color:       "#caffbf",
		},
	}
}

// clockTowerScript is the built-in case: Reia falls from the clock tower.
func clockTowerScript() *Script {
	return &Script{
		Case: Case{
			ID:       clockTowerCaseID,
			Title:    "The Fall from the Clock Tower",
			Victim:   "reia",
			Culprit:  "noah",
			Location: "The foot of the academy clock tower",
			Time:     "Around 18:00, just after the evening bell",
			PublicInfo: "Reia Hasuna was found dead at the foot of the clock tower shortly after the evening bell. " +
				"Nobody admits to having been in the tower. The warden has gathered everyone for a witch trial: " +
				"find the culprit, or the wrong girl will be executed.",
			MisleadingInfo: "Several girls heard Hiro and Reia shouting at each other in the corridor that afternoon.",
			FullTruth: "Reia had begun turning into a witch. Hanna climbed the tower to find her and was in danger. " +
				"Noah, painting in the art room that overlooks the tower, saw it happen. She used the witch-killing potion " +
				"Coco had lost in the art room, then dropped the empty bottle down the rubbish chute that connects the art room " +
				"to the tower. She did it to protect Hanna.",
			Clues: [cluePhases]map[string]string{
				{
					"hiro":   "You argued with Reia in the afternoon about her skipping duties. At 18:00 you were in the shower room with Emma.",
					"hanna":  "You went to look for Reia around 18:00 but you will not say where (you climbed the clock tower).",
					"sherii": "Hanna told you at 17:50 that she was going to find Reia at the clock tower.",
					"coco":   "You were in your room sorting medicine. (You have noticed one bottle is missing but hide it.)",
					"anan":   "You were reading in the library and heard the bell ring.",
					"noah":   "You were painting in the art room all evening.",
					"millia": "You saw Hiro and Reia argue in the corridor in the afternoon.",
					"arisa":  "You were outside behind the greenhouse, alone.",
					"nayeka": "You found the body first and called the others.",
					"margo":  "You want everyone to state where they were at 18:00.",
					"meruru": "You were in the infirmary.",
				},
				{
					"hiro":   "You remember Hanna looked pale at dinner.",
					"hanna":  "You found Reia on the tower stairs and she did not look like herself.",
					"sherii": "You are sure Hanna came back down from the tower shaking.",
					"coco":   "One bottle of witch-killing potion is missing from your stock. (Hide it unless pressed hard.)",
					"anan":   "You saw Coco's satchel in the art room yesterday.",
					"noah":   "You saw the top of the tower from your easel.",
					"millia": "You noticed the art room window was open in the cold.",
					"arisa":  "A witch cannot die from a fall. Only the witch-killing potion can kill a witch.",
					"nayeka": "There was a blood butterfly on the body, a hole in the top of her head and cracks across Reia's face.",
					"margo":  "You keep a list of who was where.",
					"meruru": "Nayeka fetched you to heal Reia but she could not be saved. The marks on her face were signs of witchification.",
				},
				{
					"hiro":   "The art room window looks straight at the clock tower balcony.",
					"hanna":  "Reia told you she was scared of what she was becoming.",
					"sherii": "Noah has been avoiding everyone since dinner.",
					"coco":   "You lost the potion. You think you left it in the art room. (Admit it only when cornered.)",
					"anan":   "Coco's potion was left in the art room. You saw the bottle on the windowsill.",
					"noah":   "You killed Reia with the potion because she had become a witch and was about to hurt Hanna. (Confess only when the evidence is overwhelming.)",
					"millia": "The empty potion bottle turned up in the art room rubbish.",
					"arisa":  "Whoever did it needed a clear view of the tower.",
					"nayeka": "The wound on Reia's head matches a thrown bottle.",
					"margo":  "The art room rubbish chute connects to the chute in the clock tower.",
					"meruru": "Potion residue was on Reia's collar.",
				},
			},
			HiddenTasks: map[string]string{
				"hiro":   "Clear your name. You did not kill Reia.",
				"hanna":  "Hide that you went to the tower unless someone else reveals it.",
				"sherii": "Find the truth, even if it hurts a friend.",
				"coco":   "Hide that your potion went missing.",
				"anan":   "Speak only when you are sure.",
				"noah":   "Do not get caught. Protect Hanna.",
				"millia": "Keep the peace.",
				"arisa":  "Find the culprit without looking soft.",
				"nayeka": "Report what you saw accurately.",
				"margo":  "Keep the trial organised.",
				"meruru": "Help, even though you are frightened.",
			},
		},
		Cast: witchTrialCast(),
		PlotPoints: [cluePhases][]PlotPoint{
			{
				{ID: 1, Speaker: "millia", Description: "Someone mentions that Hiro and Reia argued in the afternoon."},
				{ID: 2, Speaker: "hiro", Description: "Hiro gives her alibi: she was in the shower room with Emma."},
				{ID: 3, Speaker: "margo", Description: "Margo asks everyone else for their alibis."},
				{ID: 4, Speaker: "arisa", Description: "Arisa says she was outside on her own."},
				{ID: 5, Speaker: "hanna", Description: "Hanna cannot give a clear alibi."},
				{ID: 6, Speaker: "sherii", Description: "Sherii reveals that Hanna said she was going to the clock tower to find Reia."},
			},
			{
				{ID: 1, Speaker: "nayeka", Description: "Nayeka describes the blood butterfly, the hole in Reia's head and the cracks on her face."},
				{ID: 2, Speaker: "meruru", Description: "Meruru says she tried to heal Reia and that the marks were signs of witchification."},
				{ID: 3, Speaker: "arisa", Description: "Arisa explains a witch cannot die from a fall, only from the witch-killing potion."},
				{ID: 4, Speaker: "hiro", Description: "Someone asks Coco where her potion is."},
			},
			{
				{ID: 1, Speaker: "coco", Description: "Coco denies losing the potion."},
				{ID: 2, Speaker: "anan", Description: "Anan says Coco's potion was left in the art room."},
				{ID: 3, Speaker: "sherii", Description: "Suspicion turns to Noah, who was painting in the art room."},
				{ID: 4, Speaker: "hiro", Description: "Hiro points out the art room has a view of the clock tower."},
				{ID: 5, Speaker: "millia", Description: "The empty potion bottle is placed in the art room."},
				{ID: 6, Speaker: "margo", Description: "Margo explains the rubbish chutes of the art room and the tower are connected."},
				{ID: 7, Speaker: "noah", Description: "Noah breaks down: Reia had turned into a witch and she only wanted to protect Hanna."},
			},
		},
		Breakers: map[string]string{
			"hanna":  "sherii",
			"coco":   "anan",
			"hiro":   "millia",
			"noah":   "arisa",
			"sherii": "hanna",
			"anan":   "nayeka",
			"millia": "coco",
			"arisa":  "noah",
			"nayeka": "anan",
			"margo":  "hiro",
			"meruru": "nayeka",
		},
		BarredOpener:    "hiro",
		MaxRounds:       25,
		PhaseRoundDelta: 5,
		Deadline:        30 * time.Minute,
	}
}
